package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
)

// RunRepo implements ports.RunRepository with pgx.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new RunRepo.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// Insert stores a run and sets its ID.
func (r *RunRepo) Insert(ctx context.Context, run *domain.SummaryRun) error {
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO summary_runs (mode, object_id, min_lat, min_lon, max_lat, max_lon, zoom,
		                          records, rows_emitted, skipped, fetch_errors, error_kind, error,
		                          duration_ms, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`, string(run.Mode), run.ObjectID, run.BBox.MinLat, run.BBox.MinLon, run.BBox.MaxLat, run.BBox.MaxLon,
		run.Zoom, run.Records, run.Rows, run.Skipped, run.FetchErrors, run.ErrorKind, run.Error,
		run.Duration.Milliseconds(), run.StartedAt,
	).Scan(&run.ID)
	if err != nil {
		return fmt.Errorf("insert summary run: %w", err)
	}
	return nil
}

// List returns runs newest first together with the total count.
func (r *RunRepo) List(ctx context.Context, offset, limit int) ([]domain.SummaryRun, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM summary_runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count summary runs: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, mode, object_id, min_lat, min_lon, max_lat, max_lon, zoom,
		       records, rows_emitted, skipped, fetch_errors, error_kind, error,
		       duration_ms, started_at
		FROM summary_runs
		ORDER BY started_at DESC, id DESC
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list summary runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, scanRun)
	if err != nil {
		return nil, 0, fmt.Errorf("scan summary runs: %w", err)
	}
	return runs, total, nil
}

func scanRun(row pgx.CollectableRow) (domain.SummaryRun, error) {
	var (
		run        domain.SummaryRun
		mode       string
		durationMS int64
	)
	err := row.Scan(&run.ID, &mode, &run.ObjectID,
		&run.BBox.MinLat, &run.BBox.MinLon, &run.BBox.MaxLat, &run.BBox.MaxLon,
		&run.Zoom, &run.Records, &run.Rows, &run.Skipped, &run.FetchErrors,
		&run.ErrorKind, &run.Error, &durationMS, &run.StartedAt,
	)
	run.Mode = domain.SummaryMode(mode)
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, err
}
