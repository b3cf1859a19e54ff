package natsadapter

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
)

// Subscriber delivers summary events published by any instance.
type Subscriber struct {
	conn *nats.Conn
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber sharing conn.
func NewSubscriber(conn *nats.Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// SubscribeSummaryRuns invokes handler for every summary event. The subscription
// is core NATS: events published while nobody listens are not replayed.
func (s *Subscriber) SubscribeSummaryRuns(ctx context.Context, handler func(ctx context.Context, subject string, run *domain.SummaryRun)) error {
	sub, err := s.conn.Subscribe(SubjectAll, func(msg *nats.Msg) {
		var run domain.SummaryRun
		if err := json.Unmarshal(msg.Data, &run); err != nil {
			slog.Warn("dropping malformed summary event", "subject", msg.Subject, "error", err)
			return
		}
		handler(ctx, msg.Subject, &run)
	})
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes. The shared connection is left open.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
}
