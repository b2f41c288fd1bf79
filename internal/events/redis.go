package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRelayChannel is the pub/sub channel shared by all instances.
const DefaultRelayChannel = "seeit:events"

type relayEnvelope struct {
	Origin   string          `json:"origin"`
	Audience Audience        `json:"audience"`
	Name     string          `json:"event"`
	Data     json.RawMessage `json:"data"`
}

// RedisRelay carries events between server instances so a subscriber
// connected to any instance sees events published on every other one.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	bus     *Bus
	logger  *zap.SugaredLogger
}

// NewRedisRelay creates a relay for bus. Register it with bus.AddForwarder
// and start Run in its own goroutine.
func NewRedisRelay(client *redis.Client, channel string, bus *Bus, logger *zap.SugaredLogger) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		bus:     bus,
		logger:  logger,
	}
}

// Forward implements Forwarder.
func (r *RedisRelay) Forward(ctx context.Context, audience Audience, event Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	payload, err := json.Marshal(relayEnvelope{
		Origin:   r.origin,
		Audience: audience,
		Name:     event.Name,
		Data:     data,
	})
	if err != nil {
		return fmt.Errorf("marshal relay envelope: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}

// Run delivers events published by other instances to local subscribers
// until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.channel, err)
	}
	r.logger.Infow("Event relay subscribed", "channel", r.channel, "origin", r.origin)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Event relay stopped")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.logger.Warnw("Discarding malformed relay message", "error", err)
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			if _, ok := ParseAudience(string(env.Audience)); !ok {
				continue
			}
			r.bus.DeliverLocal(env.Audience, Event{Name: env.Name, Data: env.Data})
		}
	}
}
