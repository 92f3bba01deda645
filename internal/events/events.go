package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/pipeline"
)

// DefaultChannel carries pipeline state changes
const DefaultChannel = "cloudwhisper:events"

// Event is the JSON message published for every state change
type Event struct {
	RunID     string    `json:"run_id"`
	SessionID string    `json:"session_id,omitempty"`
	From      string    `json:"from"`
	State     string    `json:"state"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// FromTransition converts a pipeline transition into an Event.
func FromTransition(sessionID string, tr pipeline.Transition) Event {
	ev := Event{
		RunID:     tr.RunID,
		SessionID: sessionID,
		From:      tr.From.String(),
		State:     tr.To.String(),
		At:        tr.At.UTC(),
	}
	if tr.Err != nil {
		ev.ErrorKind = string(apperr.KindOf(tr.Err))
		ev.Error = tr.Err.Error()
	}
	return ev
}

// redisPublisher is the part of the redis client used here
type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher sends state changes to a Redis pub/sub channel
type Publisher struct {
	client  redisPublisher
	channel string
	timeout time.Duration
	logger  *slog.Logger
}

// NewPublisher creates a publisher on channel. Empty channel uses DefaultChannel.
func NewPublisher(client redisPublisher, channel string, logger *slog.Logger) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, channel: channel, timeout: 2 * time.Second, logger: logger}
}

// Publish sends one event.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("redis PUBLISH %s: %w", p.channel, err)
	}
	return nil
}

// Listener returns a pipeline listener publishing every transition.
// Publish failures are logged and never affect the run.
func (p *Publisher) Listener(sessionID string) pipeline.Listener {
	return func(tr pipeline.Transition) {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.Publish(ctx, FromTransition(sessionID, tr)); err != nil {
			p.logger.Warn("Failed to publish state event",
				slog.String("run_id", tr.RunID),
				slog.String("state", tr.To.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}
