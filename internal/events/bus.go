// Package events fans lifecycle events out to the public and police
// audiences. Delivery is best-effort and at-most-once: nothing is persisted,
// retried or replayed, and a subscriber that is gone or too slow simply
// misses the event. The REST endpoints remain the source of truth.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Audience is a named subscriber group.
type Audience string

const (
	Public Audience = "public"
	Police Audience = "police"
)

// Audiences lists every addressable audience.
var Audiences = []Audience{Public, Police}

// ParseAudience validates an audience name.
func ParseAudience(name string) (Audience, bool) {
	for _, a := range Audiences {
		if string(a) == name {
			return a, true
		}
	}
	return "", false
}

// Event is one message pushed to subscribers.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

// Subscriber receives events for the audience it joined. Deliver must not
// block; it reports false when the event was dropped.
type Subscriber interface {
	ID() string
	Deliver(Event) bool
}

// Forwarder exports events beyond this process (another instance, a broker).
type Forwarder interface {
	Forward(ctx context.Context, audience Audience, event Event) error
}

const forwardTimeout = 5 * time.Second

// Bus is the subscription registry. A subscriber belongs to at most one
// audience at a time.
type Bus struct {
	mu         sync.RWMutex
	rooms      map[Audience]map[string]Subscriber
	membership map[string]Audience
	forwarders []Forwarder
	logger     *zap.SugaredLogger
}

// NewBus creates an empty bus.
func NewBus(logger *zap.SugaredLogger) *Bus {
	rooms := make(map[Audience]map[string]Subscriber, len(Audiences))
	for _, a := range Audiences {
		rooms[a] = make(map[string]Subscriber)
	}
	return &Bus{
		rooms:      rooms,
		membership: make(map[string]Audience),
		logger:     logger,
	}
}

// AddForwarder registers an out-of-process sink for every published event.
func (b *Bus) AddForwarder(f Forwarder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forwarders = append(b.forwarders, f)
}

// Join moves sub into audience, leaving any audience it was in before.
func (b *Bus) Join(audience Audience, sub Subscriber) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	room, ok := b.rooms[audience]
	if !ok {
		return fmt.Errorf("unknown audience %q", audience)
	}
	if prev, ok := b.membership[sub.ID()]; ok {
		delete(b.rooms[prev], sub.ID())
	}
	room[sub.ID()] = sub
	b.membership[sub.ID()] = audience
	return nil
}

// Leave removes sub from whatever audience it is in.
func (b *Bus) Leave(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if prev, ok := b.membership[sub.ID()]; ok {
		delete(b.rooms[prev], sub.ID())
		delete(b.membership, sub.ID())
	}
}

// AudienceOf returns the audience subscriber id is in.
func (b *Bus) AudienceOf(id string) (Audience, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.membership[id]
	return a, ok
}

// Counts returns the number of subscribers per audience.
func (b *Bus) Counts() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	counts := make(map[string]int, len(b.rooms))
	for a, room := range b.rooms {
		counts[string(a)] = len(room)
	}
	return counts
}

// Publish delivers event to the local members of audience and hands it to
// every forwarder in the background. It never blocks on subscribers.
func (b *Bus) Publish(audience Audience, event Event) {
	b.DeliverLocal(audience, event)

	b.mu.RLock()
	forwarders := append([]Forwarder(nil), b.forwarders...)
	b.mu.RUnlock()

	for _, f := range forwarders {
		go func(f Forwarder) {
			ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
			defer cancel()
			if err := f.Forward(ctx, audience, event); err != nil {
				b.logger.Warnw("Event forward failed",
					"audience", audience,
					"event", event.Name,
					"error", err,
				)
			}
		}(f)
	}
}

// DeliverLocal pushes event to this process's members of audience only and
// returns how many accepted it.
func (b *Bus) DeliverLocal(audience Audience, event Event) int {
	b.mu.RLock()
	members := make([]Subscriber, 0, len(b.rooms[audience]))
	for _, sub := range b.rooms[audience] {
		members = append(members, sub)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range members {
		if sub.Deliver(event) {
			delivered++
		}
	}

	b.logger.Debugw("Event fanned out",
		"audience", audience,
		"event", event.Name,
		"subscribers", len(members),
		"delivered", delivered,
	)
	return delivered
}
