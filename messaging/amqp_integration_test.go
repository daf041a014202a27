//go:build integration

package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-db/database"
	"github.com/gaborage/go-bricks-db/testing/containers"
)

func TestEventPublisherAgainstRabbitMQ(t *testing.T) {
	ctx := context.Background()
	brokerURL := containers.StartRabbitMQ(ctx, t, nil)

	pub, err := Dial(brokerURL, "db.events")
	require.NoError(t, err)
	events := NewEventPublisher(pub, "", nil)
	t.Cleanup(func() { _ = events.Close() })

	conn, err := amqp.Dial(brokerURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	ch, err := conn.Channel()
	require.NoError(t, err)

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "connection.*", "db.events", false, nil))
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	creds, err := database.NewCredentials(database.SQLite, t.TempDir()+"/events.db", database.WithStrategy(database.Normal))
	require.NoError(t, err)
	c, err := database.NewClient(ctx, creds, database.WithNotifier(events))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	select {
	case d := <-deliveries:
		assert.Equal(t, "connection.succeeded", d.RoutingKey)
		assert.Equal(t, "application/json", d.ContentType)
		assert.NotEmpty(t, d.MessageId)

		var got ConnectionEvent
		require.NoError(t, json.Unmarshal(d.Body, &got))
		assert.Equal(t, "succeeded", got.Event)
		assert.Equal(t, "sqlite:events.db", got.ContextID)
	case <-time.After(10 * time.Second):
		t.Fatal("no connection event delivered")
	}
}
