package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// AMQPForwarder exports every lifecycle event to a RabbitMQ topic exchange,
// routed as "<audience>.<event>", for consumers outside the API.
type AMQPForwarder struct {
	mu       sync.Mutex
	url      string
	exchange string
	conn     *amqp.Connection
	channel  *amqp.Channel
}

// NewAMQPForwarder dials the broker and declares the exchange.
func NewAMQPForwarder(url, exchange string) (*AMQPForwarder, error) {
	f := &AMQPForwarder{url: url, exchange: exchange}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.connectLocked(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *AMQPForwarder) connectLocked() error {
	conn, err := amqp.Dial(f.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(f.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", f.exchange, err)
	}
	f.conn = conn
	f.channel = ch
	return nil
}

// RoutingKey is the topic an event is published under.
func RoutingKey(audience Audience, event Event) string {
	return string(audience) + "." + event.Name
}

// Forward implements Forwarder. A failed publish reconnects once and retries.
func (f *AMQPForwarder) Forward(ctx context.Context, audience Audience, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Timestamp:    time.Now(),
		Body:         body,
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	key := RoutingKey(audience, event)
	if f.channel != nil {
		if err := f.channel.Publish(f.exchange, key, false, false, msg); err == nil {
			return nil
		}
	}

	f.closeLocked()
	if err := f.connectLocked(); err != nil {
		return err
	}
	if err := f.channel.Publish(f.exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

// Close releases the broker connection.
func (f *AMQPForwarder) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
}

func (f *AMQPForwarder) closeLocked() {
	if f.channel != nil {
		f.channel.Close()
		f.channel = nil
	}
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
}
