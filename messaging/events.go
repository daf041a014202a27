package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/gaborage/go-bricks-db/config"
	"github.com/gaborage/go-bricks-db/database"
	"github.com/gaborage/go-bricks-db/logger"
)

// DefaultRoutingPrefix prefixes the routing key of connection events.
const DefaultRoutingPrefix = "connection"

const eventContentType = "application/json"

// ConnectionEvent is the published form of a database connection event. It never
// carries credentials.
type ConnectionEvent struct {
	Event      string    `json:"event"`
	ContextID  string    `json:"contextId"`
	Driver     string    `json:"driver"`
	Host       string    `json:"host,omitempty"`
	Database   string    `json:"database"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventPublisher is a database.Notifier that publishes each connection event with
// routing key "<prefix>.<event>". Publish failures are logged and never reach the adapter.
type EventPublisher struct {
	publisher Publisher
	prefix    string
	log       logger.Logger
	now       func() time.Time
}

var _ database.Notifier = (*EventPublisher)(nil)

// NewEventPublisher wraps p. An empty prefix means DefaultRoutingPrefix.
func NewEventPublisher(p Publisher, prefix string, log logger.Logger) *EventPublisher {
	if prefix == "" {
		prefix = DefaultRoutingPrefix
	}
	if log == nil {
		log = logger.Nop()
	}
	return &EventPublisher{publisher: p, prefix: prefix, log: log, now: time.Now}
}

// NewEventPublisherFromConfig dials the configured broker. It returns nil and no
// error when no broker URL is configured.
func NewEventPublisherFromConfig(cfg config.AMQPConfig, log logger.Logger) (*EventPublisher, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	p, err := Dial(cfg.URL, cfg.Exchange, WithLogger(log))
	if err != nil {
		return nil, err
	}
	return NewEventPublisher(p, cfg.Prefix, log), nil
}

// RoutingKey returns the routing key used for events named name.
func (p *EventPublisher) RoutingKey(name string) string {
	return p.prefix + "." + name
}

// Notify implements database.Notifier.
func (p *EventPublisher) Notify(ctx context.Context, event database.Event) {
	payload := p.connectionEvent(event)
	body, err := json.Marshal(payload)
	if err != nil {
		p.log.Error().Err(err).Str("event", payload.Event).Msg("Failed to encode connection event")
		return
	}

	msg := Message{
		Body:        body,
		ContentType: eventContentType,
		MessageID:   uuid.NewString(),
		Timestamp:   payload.OccurredAt,
	}
	if err := p.publisher.Publish(ctx, p.RoutingKey(payload.Event), msg); err != nil {
		p.log.Warn().
			Err(err).
			Str("event", payload.Event).
			Str("store", payload.ContextID).
			Msg("Failed to publish connection event")
	}
}

// Close closes the underlying publisher.
func (p *EventPublisher) Close() error {
	return p.publisher.Close()
}

func (p *EventPublisher) connectionEvent(event database.Event) ConnectionEvent {
	out := ConnectionEvent{
		Event:      event.Name(),
		OccurredAt: p.now().UTC(),
	}
	if creds := database.EventCredentials(event); creds != nil {
		out.ContextID = creds.ContextID()
		out.Driver = creds.Driver().String()
		out.Database = creds.DBName()
		if creds.Driver() != database.SQLite {
			out.Host = creds.Host()
		}
	}
	if failed, ok := event.(database.ConnectionFailed); ok && failed.Cause != nil {
		out.Error = failed.Cause.Error()
	}
	return out
}
