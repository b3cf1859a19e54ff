package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAreaNotFound is returned by area lookups for unknown identifiers.
	ErrAreaNotFound = errors.New("built-up area not found")
	// ErrInvalidZoom is returned by hex grids that reject a zoom level.
	ErrInvalidZoom = errors.New("invalid zoom level")
	// ErrNoPolygon is returned by area lookups whose geometry is not a polygon.
	ErrNoPolygon = errors.New("area has no usable polygon")
)

// Kind classifies pipeline failures. The set is closed.
type Kind int

const (
	KindUnknown Kind = iota
	KindInit
	KindNotFound
	KindUpstream
	KindDegenerateGeometry
	KindPartialFetch
	KindAggregation
	KindPackaging
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "initialization_error"
	case KindNotFound:
		return "not_found"
	case KindUpstream:
		return "upstream_error"
	case KindDegenerateGeometry:
		return "degenerate_geometry"
	case KindPartialFetch:
		return "partial_fetch"
	case KindAggregation:
		return "aggregation_error"
	case KindPackaging:
		return "packaging_error"
	default:
		return "unknown_error"
	}
}

// Error is the single error type surfaced by the summary pipeline.
type Error struct {
	Kind        Kind
	Op          string
	Err         error
	FetchErrors []FetchError
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind == KindPartialFetch {
		fmt.Fprintf(&b, "fetch had %d errors: [", len(e.FetchErrors))
		for i, fe := range e.FetchErrors {
			if i > 0 {
				b.WriteString("; ")
			}
			b.WriteString(fe.Error())
		}
		b.WriteString("]")
		return b.String()
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString(e.Kind.String())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a kind and the operation that failed.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewPartialFetchError aggregates every partition failure into one error.
func NewPartialFetchError(op string, errs []FetchError) *Error {
	cp := make([]FetchError, len(errs))
	copy(cp, errs)
	return &Error{Kind: KindPartialFetch, Op: op, Err: errors.New("partial fetch"), FetchErrors: cp}
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
