// Package messaging publishes database connection lifecycle events to an AMQP broker.
package messaging

import (
	"context"
	"time"
)

// Message is one message handed to a Publisher.
type Message struct {
	Body        []byte
	ContentType string
	// MessageID should be unique per message for deduplication on the consumer side.
	MessageID string
	Timestamp time.Time
	Headers   map[string]any
}

// Publisher sends messages to a fixed exchange.
type Publisher interface {
	// Publish sends msg with the given routing key and waits for the broker to confirm it.
	Publish(ctx context.Context, routingKey string, msg Message) error

	// Close releases the channel and connection.
	Close() error
}
