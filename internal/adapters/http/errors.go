package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int           `json:"status"`
	Code      string        `json:"code"`    // bad_request, not_found, partial_fetch, ...
	Message   string        `json:"message"` // Human-readable message
	RequestID string        `json:"request_id,omitempty"`
	Details   []FetchDetail `json:"details,omitempty"`
}

// FetchDetail describes one failed partition in a partial_fetch response.
type FetchDetail struct {
	Partition int         `json:"partition"`
	BBox      domain.BBox `json:"bbox"`
	Error     string      `json:"error"`
}

func newError(c *fiber.Ctx, status int, code string, message string) error {
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: requestID(c),
	})
}

func requestID(c *fiber.Ctx) string {
	reqID, _ := c.Locals("requestid").(string)
	return reqID
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errServiceUnavailable returns a 503 error.
func errServiceUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, "unavailable", msg)
}

// statusForKind maps a pipeline error kind to an HTTP status.
func statusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindNotFound:
		return fiber.StatusNotFound
	case domain.KindDegenerateGeometry:
		return fiber.StatusUnprocessableEntity
	case domain.KindPartialFetch, domain.KindUpstream:
		return fiber.StatusBadGateway
	case domain.KindInit:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// errFromDomain renders a pipeline error. Partial fetches list every failed partition.
func errFromDomain(c *fiber.Ctx, err error) error {
	if errors.Is(err, domain.ErrInvalidZoom) {
		return errBadRequest(c, err.Error())
	}

	var de *domain.Error
	if !errors.As(err, &de) {
		return errInternal(c, err.Error())
	}

	status := statusForKind(de.Kind)
	if status >= fiber.StatusInternalServerError {
		LoggerFromCtx(c.UserContext()).Warn("summary request failed",
			"kind", de.Kind.String(),
			"error", err,
		)
	}
	apiErr := APIError{
		Status:    status,
		Code:      de.Kind.String(),
		Message:   de.Error(),
		RequestID: requestID(c),
	}
	for _, fe := range de.FetchErrors {
		detail := FetchDetail{Partition: fe.Partition, BBox: fe.BBox}
		if fe.Err != nil {
			detail.Error = fe.Err.Error()
		}
		apiErr.Details = append(apiErr.Details, detail)
	}
	return c.Status(status).JSON(apiErr)
}
