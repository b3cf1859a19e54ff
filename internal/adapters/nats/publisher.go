package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
)

const (
	// StreamName holds every summary event.
	StreamName = "HEX_SUMMARIES"
	// SubjectAll matches every summary event subject.
	SubjectAll = "infrahex.summary.>"

	subjectCompleted = "infrahex.summary.completed"
	subjectFailed    = "infrahex.summary.failed"
)

// SubjectFor returns the subject a run is published on.
func SubjectFor(run *domain.SummaryRun) string {
	if run.Succeeded() {
		return subjectCompleted
	}
	return subjectFailed
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the summary stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectAll},
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishSummaryRun publishes the run as JSON on its completed or failed subject.
func (p *Publisher) PublishSummaryRun(ctx context.Context, run *domain.SummaryRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectFor(run), data, nats.Context(ctx))
	return err
}

// Ping reports whether the connection is up.
func (p *Publisher) Ping(ctx context.Context) error {
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats status %s", p.conn.Status())
	}
	return p.conn.FlushWithContext(ctx)
}

// Conn exposes the underlying connection for subscribers sharing it.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection.
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("infrahex"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
