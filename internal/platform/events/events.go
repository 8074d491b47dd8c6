// Package events publishes domain events (prescription allocation, quote
// acceptance) to RabbitMQ and consumes them in the worker.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Routing keys.
const (
	PrescriptionAllocated     = "prescription.allocated"
	PrescriptionQuoteAccepted = "prescription.quote_accepted"
)

// Publisher sends v as a JSON event under routingKey.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, v interface{}) error
}

// AMQPPublisher publishes persistent JSON messages to a durable topic
// exchange and waits for the broker confirm.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	confirms chan amqp.Confirmation
	mu       sync.Mutex
}

// Dial connects to url and declares the exchange.
func Dial(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return conn, ch, nil
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, ch, err := Dial(url, exchange)
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	return &AMQPPublisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		confirms: ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", routingKey, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	select {
	case c := <-p.confirms:
		if !c.Ack {
			return fmt.Errorf("publish %s: message not confirmed", routingKey)
		}
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", routingKey, ctx.Err())
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return p.conn.Close()
}

// LogPublisher writes events to the log. It is used when no broker is
// configured.
type LogPublisher struct {
	Logger zerolog.Logger
}

func (p LogPublisher) Publish(_ context.Context, routingKey string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", routingKey, err)
	}
	p.Logger.Info().Str("routing_key", routingKey).RawJSON("event", body).Msg("event published")
	return nil
}

// Handler processes one delivery body. A returned error requeues the
// message.
type Handler func(ctx context.Context, body []byte) error

// Consume binds queue to bindingKey on exchange and runs handler for each
// delivery until ctx is cancelled. Deliveries are acknowledged manually.
func Consume(ctx context.Context, ch *amqp.Channel, exchange, queue, bindingKey string, logger zerolog.Logger, handler Handler) error {
	q, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(q.Name, bindingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", queue, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			handleDelivery(ctx, d, logger, handler)
		}
	}
}

// acknowledger is the subset of amqp.Delivery used by handleDelivery.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

type delivery struct {
	acknowledger
	routingKey  string
	messageID   string
	body        []byte
	redelivered bool
}

func handleDelivery(ctx context.Context, d amqp.Delivery, logger zerolog.Logger, handler Handler) {
	process(ctx, delivery{
		acknowledger: &d,
		routingKey:   d.RoutingKey,
		messageID:    d.MessageId,
		body:         d.Body,
		redelivered:  d.Redelivered,
	}, logger, handler)
}

// process runs handler and acks, or nacks with requeue on the first failure.
// A message that fails again after redelivery is dropped.
func process(ctx context.Context, d delivery, logger zerolog.Logger, handler Handler) {
	log := logger.With().Str("routing_key", d.routingKey).Str("message_id", d.messageID).Logger()
	if err := handler(ctx, d.body); err != nil {
		requeue := !d.redelivered
		log.Error().Err(err).Bool("requeue", requeue).Msg("event handler failed")
		if nerr := d.Nack(false, requeue); nerr != nil {
			log.Error().Err(nerr).Msg("nack failed")
		}
		return
	}
	if err := d.Ack(false); err != nil {
		log.Error().Err(err).Msg("ack failed")
	}
}
