package messaging

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Internal interfaces and adapters to enable testing without a real broker
type amqpConnection interface {
	Channel() (amqpChannel, error)
	Close() error
}

type amqpChannel interface {
	Confirm(noWait bool) error
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	GetNextPublishSeqNo() uint64
	Close() error
}

// Adapter to real amqp connection
type realConnection struct{ c *amqp.Connection }

func (r realConnection) Channel() (amqpChannel, error) {
	ch, err := r.c.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (r realConnection) Close() error { return r.c.Close() }

// Pluggable dialer for tests
var amqpDialFunc = func(url string) (amqpConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return realConnection{c: conn}, nil
}
