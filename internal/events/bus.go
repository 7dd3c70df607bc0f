// internal/events/bus.go
package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"comport-service/internal/model"
)

const subscriberBuffer = 100

// Subscription receives events of the requested types. An empty type set
// receives every event.
type Subscription struct {
	ID     uuid.UUID
	C      <-chan model.PortEvent
	ch     chan model.PortEvent
	types  map[model.EventType]struct{}
	closed bool
}

func (s *Subscription) wants(eventType model.EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// Bus manages port event distribution
type Bus struct {
	subscribers map[uuid.UUID]*Subscription
	events      chan model.PortEvent
	mutex       sync.RWMutex
	logger      *zap.Logger
	published   atomic.Uint64
	dropped     atomic.Uint64
}

// NewBus creates a new event bus
func NewBus(bufferSize int, logger *zap.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &Bus{
		subscribers: make(map[uuid.UUID]*Subscription),
		events:      make(chan model.PortEvent, bufferSize),
		logger:      logger.With(zap.String("component", "event-bus")),
	}
}

// Run distributes events until ctx is done, then closes every subscription
func (b *Bus) Run(ctx context.Context) {
	defer b.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-b.events:
			b.distributeEvent(event)
		}
	}
}

// Publish queues an event without blocking. Events are dropped when the bus is full.
func (b *Bus) Publish(event model.PortEvent) {
	select {
	case b.events <- event:
		b.published.Add(1)
	default:
		b.dropped.Add(1)
		b.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.EventType)),
			zap.String("port", event.Port.Name),
		)
	}
}

// Subscribe registers a subscriber for the given event types
func (b *Bus) Subscribe(types ...model.EventType) *Subscription {
	ch := make(chan model.PortEvent, subscriberBuffer)
	sub := &Subscription{
		ID:    uuid.New(),
		C:     ch,
		ch:    ch,
		types: make(map[model.EventType]struct{}, len(types)),
	}
	for _, t := range types {
		sub.types[t] = struct{}{}
	}

	b.mutex.Lock()
	b.subscribers[sub.ID] = sub
	b.mutex.Unlock()

	return sub
}

// Unsubscribe removes the subscription and closes its channel
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	delete(b.subscribers, sub.ID)
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// Published returns the number of accepted events
func (b *Bus) Published() uint64 {
	return b.published.Load()
}

// Dropped returns the number of events dropped because the bus was full
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// distributeEvent hands the event to every interested subscriber. Slow
// subscribers miss the event.
func (b *Bus) distributeEvent(event model.PortEvent) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	for _, sub := range b.subscribers {
		if !sub.wants(event.EventType) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.logger.Debug("Subscriber is slow, skipping event",
				zap.String("subscriber", sub.ID.String()),
				zap.String("event_type", string(event.EventType)),
			)
		}
	}
}

func (b *Bus) closeAll() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for id, sub := range b.subscribers {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
		delete(b.subscribers, id)
	}
}
