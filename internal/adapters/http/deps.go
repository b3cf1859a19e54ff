package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/CHRISCARLON/infra-hex/internal/core/ports"
	"github.com/CHRISCARLON/infra-hex/internal/core/usecases"
)

// Pinger is implemented by backing services that take part in readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
// Everything except Summaries is optional.
type Dependencies struct {
	Summaries      *usecases.SummaryService
	Runs           ports.RunRepository
	NATS           *nats.Conn
	DB             Pinger
	Cache          Pinger
	RequestTimeout time.Duration
	DocsPath       string
}

func (d *Dependencies) requestTimeout() time.Duration {
	if d.RequestTimeout <= 0 {
		return 60 * time.Second
	}
	return d.RequestTimeout
}
