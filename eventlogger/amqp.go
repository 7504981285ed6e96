package eventlogger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// publisher is the part of *amqp091.Channel the sink needs.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPSink publishes every event to a durable topic exchange, routed by its
// type, so consumers can bind to patterns such as "transaction.*".
type AMQPSink struct {
	conn     *amqp091.Connection
	channel  publisher
	exchange string
}

func NewAMQPSink(url, exchange string) (*AMQPSink, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &AMQPSink{conn: conn, channel: channel, exchange: exchange}, nil
}

func (s *AMQPSink) Save(ctx context.Context, e Event) error {
	msg, err := newPublishing(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.channel.PublishWithContext(ctx, s.exchange, e.Type, false, false, msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func newPublishing(e Event) (amqp091.Publishing, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    e.ID.String(),
		Type:         e.Type,
		Timestamp:    e.CreatedAt,
		Body:         body,
	}, nil
}
