package messaging

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-bricks-db/logger"
)

// OpenTelemetry constants
const (
	messagingTracerName     = "go-bricks-db/messaging"
	messagingSystemRabbitMQ = "rabbitmq"
	operationPublish        = "publish"
)

const (
	defaultConfirmTimeout = 5 * time.Second
	// confirmBuffer holds confirmations for timed-out publishes until the next
	// Publish discards them, so the connection reader never blocks on delivery.
	confirmBuffer = 64
)

var (
	errPublisherClosed  = errors.New("AMQP publisher already closed")
	errNotAcknowledged  = errors.New("message not acknowledged by broker")
	errConfirmTimedOut  = errors.New("timed out waiting for publish confirmation")
	errConfirmsDisabled = errors.New("confirmation channel closed")
)

// AMQPPublisher publishes to one durable topic exchange over a single confirming channel.
// Publish calls are serialized.
type AMQPPublisher struct {
	m              sync.Mutex
	exchange       string
	log            logger.Logger
	connection     amqpConnection
	channel        amqpChannel
	confirms       chan amqp.Confirmation
	confirmTimeout time.Duration
	closed         bool
}

// PublisherOption customizes Dial.
type PublisherOption func(*AMQPPublisher)

// WithLogger sets the publisher logger.
func WithLogger(log logger.Logger) PublisherOption {
	return func(p *AMQPPublisher) {
		if log != nil {
			p.log = log
		}
	}
}

// WithConfirmTimeout bounds the wait for a broker confirmation.
func WithConfirmTimeout(d time.Duration) PublisherOption {
	return func(p *AMQPPublisher) {
		if d > 0 {
			p.confirmTimeout = d
		}
	}
}

// Dial connects to brokerURL, puts a channel in confirm mode and declares exchange
// as a durable topic exchange.
func Dial(brokerURL, exchange string, opts ...PublisherOption) (*AMQPPublisher, error) {
	if exchange == "" {
		return nil, errors.New("exchange name cannot be empty")
	}

	p := &AMQPPublisher{
		exchange:       exchange,
		log:            logger.Nop(),
		confirmTimeout: defaultConfirmTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}

	conn, err := amqpDialFunc(brokerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker %s: %w", redactAMQPURL(brokerURL), err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %q: %w", exchange, err)
	}

	p.connection = conn
	p.channel = ch
	p.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, confirmBuffer))

	p.log.Info().
		Str("broker_url", redactAMQPURL(brokerURL)).
		Str("exchange", exchange).
		Msg("Connected to AMQP broker")
	return p, nil
}

// Exchange returns the exchange messages are published to.
func (p *AMQPPublisher) Exchange() string { return p.exchange }

// Publish implements Publisher.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, msg Message) error {
	ctx, span := p.startPublishSpan(ctx, routingKey, msg)
	defer span.End()

	err := p.publish(ctx, routingKey, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (p *AMQPPublisher) publish(ctx context.Context, routingKey string, msg Message) error {
	p.m.Lock()
	defer p.m.Unlock()

	if p.closed {
		return errPublisherClosed
	}

	publishing := amqp.Publishing{
		ContentType:  msg.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		Timestamp:    msg.Timestamp,
		Body:         msg.Body,
		Headers:      amqp.Table{},
	}
	if publishing.ContentType == "" {
		publishing.ContentType = "application/octet-stream"
	}
	if publishing.MessageId == "" {
		publishing.MessageId = uuid.NewString()
	}
	if msg.Headers != nil {
		maps.Copy(publishing.Headers, msg.Headers)
	}
	otel.GetTextMapPropagator().Inject(ctx, amqpHeaderCarrier(publishing.Headers))

	p.discardStaleConfirms()
	tag := p.channel.GetNextPublishSeqNo()

	if err := p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish to %s/%s: %w", p.exchange, routingKey, err)
	}

	timer := time.NewTimer(p.confirmTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return errConfirmTimedOut
		case confirm, ok := <-p.confirms:
			if !ok {
				return errConfirmsDisabled
			}
			if confirm.DeliveryTag < tag {
				p.logStaleConfirm(confirm)
				continue
			}
			if !confirm.Ack {
				return errNotAcknowledged
			}
			p.log.Debug().
				Str("exchange", p.exchange).
				Str("routing_key", routingKey).
				Uint64("delivery_tag", confirm.DeliveryTag).
				Msg("Message published successfully")
			return nil
		}
	}
}

// discardStaleConfirms drops confirmations buffered before a publish. They belong
// to earlier publishes that timed out or were cancelled.
func (p *AMQPPublisher) discardStaleConfirms() {
	for {
		select {
		case confirm, ok := <-p.confirms:
			if !ok {
				return
			}
			p.logStaleConfirm(confirm)
		default:
			return
		}
	}
}

func (p *AMQPPublisher) logStaleConfirm(confirm amqp.Confirmation) {
	p.log.Debug().
		Str("exchange", p.exchange).
		Uint64("delivery_tag", confirm.DeliveryTag).
		Bool("ack", confirm.Ack).
		Msg("Discarding late publish confirmation")
}

func (p *AMQPPublisher) startPublishSpan(ctx context.Context, routingKey string, msg Message) (context.Context, trace.Span) {
	tracer := otel.Tracer(messagingTracerName)
	ctx, span := tracer.Start(ctx, p.exchange+" "+operationPublish,
		trace.WithSpanKind(trace.SpanKindProducer),
	)

	attrs := []attribute.KeyValue{
		attribute.String(string(semconv.MessagingSystemKey), messagingSystemRabbitMQ),
		semconv.MessagingOperationName(operationPublish),
		semconv.MessagingDestinationName(p.exchange),
		semconv.MessagingMessageBodySize(len(msg.Body)),
		attribute.String("messaging.rabbitmq.routing_key", routingKey),
	}
	if msg.MessageID != "" {
		attrs = append(attrs, semconv.MessagingMessageID(msg.MessageID))
	}
	span.SetAttributes(attrs...)
	return ctx, span
}

// Close closes the channel and connection. A second call returns an error.
func (p *AMQPPublisher) Close() error {
	p.m.Lock()
	defer p.m.Unlock()

	if p.closed {
		return errPublisherClosed
	}
	p.closed = true

	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.connection != nil {
		errs = append(errs, p.connection.Close())
	}

	p.log.Info().Msg("AMQP publisher closed")
	return errors.Join(errs...)
}

// amqpHeaderCarrier adapts AMQP headers to propagation.TextMapCarrier.
type amqpHeaderCarrier amqp.Table

func (c amqpHeaderCarrier) Get(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func (c amqpHeaderCarrier) Set(key, value string) { c[key] = value }

func (c amqpHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// #nosec G101 -- Placeholder text for redacted URLs, not actual credentials
const redactedAMQPPlaceholder = "amqp://****:****@<host>:<port>/<vhost>"

// redactAMQPURL masks the password of an amqp:// or amqps:// URL and keeps the
// username, host and vhost. Anything unparsable becomes a generic placeholder.
func redactAMQPURL(amqpURL string) string {
	u, err := url.Parse(amqpURL)
	if err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") || u.Host == "" {
		return redactedAMQPPlaceholder
	}

	user := "****"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	out := u.Scheme + "://" + user + ":****@" + u.Host + u.EscapedPath()
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out
}
