// Package app wires configuration into a ready-to-use summary pipeline. It is
// shared by the API server, the batch worker and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CHRISCARLON/infra-hex/internal/adapters/arcgis"
	"github.com/CHRISCARLON/infra-hex/internal/adapters/h3grid"
	natsadapter "github.com/CHRISCARLON/infra-hex/internal/adapters/nats"
	"github.com/CHRISCARLON/infra-hex/internal/adapters/opendatasoft"
	"github.com/CHRISCARLON/infra-hex/internal/adapters/postgres"
	"github.com/CHRISCARLON/infra-hex/internal/adapters/redis"
	"github.com/CHRISCARLON/infra-hex/internal/adapters/valkey"
	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
	"github.com/CHRISCARLON/infra-hex/internal/core/ports"
	"github.com/CHRISCARLON/infra-hex/internal/core/usecases"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/config"
)

// Cache is a lookup cache that can also be health-checked.
type Cache interface {
	ports.CacheService
	Ping(ctx context.Context) error
	Close()
}

// Pipeline is a wired SummaryService together with the optional backends it uses.
// Optional fields are nil when the backend is disabled or unreachable.
type Pipeline struct {
	Summaries *usecases.SummaryService
	Runs      *postgres.RunRepo
	DB        *postgres.DB
	Cache     Cache
	Publisher *natsadapter.Publisher

	closers []func()
}

// Build connects the configured backends and assembles the pipeline. A
// misconfigured data source is a KindInit error. An enabled database that
// cannot be reached is fatal; cache and NATS failures only disable those features.
func Build(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	p := &Pipeline{}

	infra, err := opendatasoft.NewClient(opendatasoft.Config{
		BaseURL:       cfg.Infra.BaseURL,
		Dataset:       cfg.Infra.Dataset,
		APIKey:        cfg.Infra.APIKey,
		PointField:    cfg.Infra.PointField,
		ShapeField:    cfg.Infra.ShapeField,
		IDField:       cfg.Infra.IDField,
		OrderBy:       cfg.Infra.OrderBy,
		PageSize:      cfg.Infra.PageSize,
		MaxOffset:     cfg.Infra.MaxOffset,
		MaxSplitDepth: cfg.Infra.MaxSplitDepth,
		PartitionRows: cfg.Infra.PartitionRows,
		PartitionCols: cfg.Infra.PartitionCols,
		Concurrency:   cfg.Infra.Concurrency,
		RatePerSecond: cfg.Infra.RatePerSecond,
		MaxRetries:    cfg.Infra.MaxRetries,
		Timeout:       cfg.Infra.Timeout,
	})
	if err != nil {
		return nil, domain.NewError(domain.KindInit, "infra client", err)
	}

	p.Cache = openCache(cfg.Cache)
	if p.Cache != nil {
		p.closers = append(p.closers, p.Cache.Close)
	}

	var cache ports.CacheService
	if p.Cache != nil {
		cache = p.Cache
	}
	areas, err := arcgis.NewClient(arcgis.Config{
		LayerURL:   cfg.Areas.LayerURL,
		NameField:  cfg.Areas.NameField,
		CodeField:  cfg.Areas.CodeField,
		MaxRetries: cfg.Areas.MaxRetries,
		Timeout:    cfg.Areas.Timeout,
		CacheTTL:   cfg.Cache.TTL,
	}, cache)
	if err != nil {
		p.Close()
		return nil, domain.NewError(domain.KindInit, "area client", err)
	}

	var runs ports.RunRepository
	if cfg.Database.Enabled {
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("database: %w", err)
		}
		p.DB = db
		p.Runs = postgres.NewRunRepo(db)
		p.closers = append(p.closers, db.Close)
		runs = p.Runs
	}

	var events ports.EventPublisher
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, summary events disabled", "error", err)
		} else {
			p.Publisher = pub
			p.closers = append(p.closers, pub.Close)
			events = pub
		}
	}

	p.Summaries = usecases.NewSummaryService(areas, infra, h3grid.New(), runs, events)
	return p, nil
}

// openCache returns the configured cache backend, or nil.
func openCache(cfg config.CacheConfig) Cache {
	switch strings.ToLower(cfg.Driver) {
	case "valkey":
		c, err := valkey.New(cfg.Addr, cfg.Password, cfg.DB)
		if err != nil {
			slog.Warn("valkey unavailable, area cache disabled", "error", err)
			return nil
		}
		return c
	case "redis":
		return redis.New(cfg.Addr, cfg.Password, cfg.DB)
	default:
		return nil
	}
}

// Close releases every backend in reverse order of acquisition.
func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
	p.closers = nil
}
