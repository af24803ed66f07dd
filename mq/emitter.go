package mq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Event types published on the events channel.
const (
	ReservationCreated   = "reservation.created"
	ReservationCancelled = "reservation.cancelled"
	ReservationStatus    = "reservation.status"
	EventBookingCreated  = "event_booking.created"
	EventBookingCancel   = "event_booking.cancelled"
	OrderPlaced          = "order.placed"
	OrderStatus          = "order.status"
)

type Event struct {
	Type     string    `json:"type"`
	EntityID string    `json:"entityId"`
	UserID   string    `json:"userId,omitempty"`
	Data     any       `json:"data,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher fans out domain events. Publishing is best effort: a failure is
// logged and never fails the request that produced the event.
type Publisher interface {
	Emit(ctx context.Context, ev Event)
}

type RedisPublisher struct {
	Client  *redis.Client
	Channel string
}

func (p *RedisPublisher) Emit(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("failed to marshal event")
		return
	}
	if err := p.Client.Publish(ctx, p.Channel, data).Err(); err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("failed to publish event")
		return
	}
	log.Debug().Str("type", ev.Type).Str("entity", ev.EntityID).Msg("event published")
}

// Subscribe delivers raw payloads from channel to fn until ctx is done.
func Subscribe(ctx context.Context, c *redis.Client, channel string, fn func([]byte)) {
	sub := c.Subscribe(ctx, channel)
	defer sub.Close()
	ch := sub.Channel()

	log.Info().Str("channel", channel).Msg("listening for events")
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fn([]byte(msg.Payload))
		}
	}
}

// Recorder keeps events in memory. Used when Redis is not configured and in
// tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	sink   func([]byte)
}

// NewRecorder returns a Recorder that also forwards encoded events to sink
// when sink is non-nil.
func NewRecorder(sink func([]byte)) *Recorder {
	return &Recorder{sink: sink}
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	r.mu.Lock()
	r.events = append(r.events, ev)
	if len(r.events) > 1000 {
		r.events = r.events[len(r.events)-1000:]
	}
	r.mu.Unlock()
	if r.sink != nil {
		if data, err := json.Marshal(ev); err == nil {
			r.sink(data)
		}
	}
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}
