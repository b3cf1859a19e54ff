package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/CHRISCARLON/infra-hex/internal/adapters/nats"
	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/metrics"
)

// wsMessage is sent from client to change which summary events it receives.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Channel string `json:"channel"` // "completed" | "failed"
}

// wsEvent is relayed to clients for every summary run.
type wsEvent struct {
	Subject string             `json:"subject"`
	Run     *domain.SummaryRun `json:"run"`
}

// channelOf returns the last token of a summary subject.
func channelOf(subject string) string {
	return subject[strings.LastIndex(subject, ".")+1:]
}

// WebSocketHandler returns a handler that relays summary run events to
// connected clients. Clients start subscribed to every channel and send
// {"action":"unsubscribe","channel":"completed"} to narrow the feed.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		channels := map[string]bool{"completed": true, "failed": true}

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sub := natsadapter.NewSubscriber(nc)
		defer sub.Close()
		err := sub.SubscribeSummaryRuns(ctx, func(_ context.Context, subject string, run *domain.SummaryRun) {
			mu.Lock()
			wanted := channels[channelOf(subject)]
			mu.Unlock()
			if wanted {
				_ = writeJSON(wsEvent{Subject: subject, Run: run})
			}
		})
		if err != nil {
			slog.Error("ws subscribe failed", "error", err)
			return
		}

		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}
			if m.Channel != "completed" && m.Channel != "failed" {
				_ = writeJSON(map[string]string{"error": "unknown channel: " + m.Channel})
				continue
			}

			switch m.Action {
			case "subscribe", "unsubscribe":
				mu.Lock()
				channels[m.Channel] = m.Action == "subscribe"
				mu.Unlock()
				_ = writeJSON(map[string]string{"status": m.Action + "d", "channel": m.Channel})
			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
