package ports

import (
	"context"
	"errors"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
)

// EventPublisher publishes pipeline events to a message broker.
type EventPublisher interface {
	PublishSummaryRun(ctx context.Context, run *domain.SummaryRun) error
}

// ErrCacheMiss is returned by CacheService.Get for absent keys.
var ErrCacheMiss = errors.New("cache miss")

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
