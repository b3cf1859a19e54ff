package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
	"github.com/CHRISCARLON/infra-hex/internal/core/ports"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/geospatial"
)

// AreaResolver turns a built-up-area identifier into its polygon and bounding box.
type AreaResolver struct {
	lookup ports.AreaLookup
}

// NewAreaResolver creates a new AreaResolver.
func NewAreaResolver(lookup ports.AreaLookup) *AreaResolver {
	return &AreaResolver{lookup: lookup}
}

// Resolve fetches the area and computes the bounding rectangle of its geometry.
func (r *AreaResolver) Resolve(ctx context.Context, objectID int64) (*domain.BuiltUpArea, domain.BBox, error) {
	const op = "resolve area"

	area, err := r.lookup.FetchByObjectID(ctx, objectID)
	if err != nil {
		if errors.Is(err, domain.ErrAreaNotFound) {
			return nil, domain.BBox{}, domain.NewError(domain.KindNotFound, op, fmt.Errorf("object id %d: %w", objectID, err))
		}
		if errors.Is(err, domain.ErrNoPolygon) {
			return nil, domain.BBox{}, domain.NewError(domain.KindDegenerateGeometry, op, fmt.Errorf("object id %d: %w", objectID, err))
		}
		return nil, domain.BBox{}, domain.NewError(domain.KindUpstream, op, fmt.Errorf("object id %d: %w", objectID, err))
	}
	if area == nil {
		return nil, domain.BBox{}, domain.NewError(domain.KindNotFound, op, fmt.Errorf("object id %d: %w", objectID, domain.ErrAreaNotFound))
	}

	bbox, err := geospatial.Envelope(area.Geometry)
	if err != nil {
		return nil, domain.BBox{}, domain.NewError(domain.KindDegenerateGeometry, op, fmt.Errorf("object id %d: %w", objectID, err))
	}
	return area, bbox, nil
}
