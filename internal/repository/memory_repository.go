// internal/repository/memory_repository.go
package repository

import (
	"context"
	"sync"
	"time"

	"comport-service/internal/model"
)

// memoryPortEventRepository keeps a bounded per-port history in memory. It is
// used when no database is configured.
type memoryPortEventRepository struct {
	mutex    sync.RWMutex
	capacity int
	events   map[int][]*model.PortEvent
}

// NewMemoryPortEventRepository creates a repository keeping at most capacity
// events per port
func NewMemoryPortEventRepository(capacity int) PortEventRepository {
	if capacity <= 0 {
		capacity = DefaultHistoryLimit
	}
	return &memoryPortEventRepository{
		capacity: capacity,
		events:   make(map[int][]*model.PortEvent),
	}
}

func (r *memoryPortEventRepository) Create(ctx context.Context, event *model.PortEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := *event
	stored.Port = event.Port.Clone()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	history := append(r.events[event.Port.Number], &stored)
	if len(history) > r.capacity {
		history = history[len(history)-r.capacity:]
	}
	r.events[event.Port.Number] = history
	return nil
}

func (r *memoryPortEventRepository) ListByPort(ctx context.Context, number int, filter *HistoryFilter) ([]*model.PortEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limit := DefaultHistoryLimit
	var since time.Time
	if filter != nil {
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		since = filter.Since
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	history := r.events[number]
	events := []*model.PortEvent{}
	for i := len(history) - 1; i >= 0 && len(events) < limit; i-- {
		if history[i].Timestamp.Before(since) {
			continue
		}
		event := *history[i]
		events = append(events, &event)
	}
	return events, nil
}

func (r *memoryPortEventRepository) DeleteOlderThan(ctx context.Context, t time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	var deleted int64
	for number, history := range r.events {
		kept := history[:0]
		for _, e := range history {
			if e.Timestamp.Before(t) {
				deleted++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(r.events, number)
			continue
		}
		r.events[number] = kept
	}
	return deleted, nil
}
