package ports

import (
	"context"

	"github.com/go-spatial/geom"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
)

// InfraClient fetches raw infrastructure records from the remote data provider.
// Partition failures are reported in FetchResult.Errors, never as a returned error.
type InfraClient interface {
	FetchAllByBBox(ctx context.Context, bbox domain.BBox) domain.FetchResult
}

// AreaLookup resolves a built-up area by its administrative object identifier.
// Unknown identifiers yield an error wrapping domain.ErrAreaNotFound.
type AreaLookup interface {
	FetchByObjectID(ctx context.Context, objectID int64) (*domain.BuiltUpArea, error)
}

// HexGrid indexes coordinates onto a hexagonal tiling.
// Implementations validate zoom and return an error wrapping domain.ErrInvalidZoom when
// they reject it.
type HexGrid interface {
	CellAt(lat, lon float64, zoom int) (string, error)
	CellBoundary(cellID string) (geom.Polygon, error)
}

// RunRepository persists the audit log of pipeline runs.
type RunRepository interface {
	Insert(ctx context.Context, run *domain.SummaryRun) error
	List(ctx context.Context, offset, limit int) ([]domain.SummaryRun, int, error)
}
