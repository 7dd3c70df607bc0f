// internal/service/history_service.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"comport-service/internal/lifecycle"
	"comport-service/internal/model"
	"comport-service/internal/repository"
	"comport-service/internal/utils"
)

const (
	writeTimeout    = 5 * time.Second
	cleanupInterval = time.Hour
)

// HistoryRecorder stores port events and expires old ones
type HistoryRecorder struct {
	*lifecycle.Loop

	repo      repository.PortEventRepository
	events    <-chan model.PortEvent
	retention time.Duration
	logger    *utils.ServiceLogger
}

// NewHistoryRecorder starts recording events until the channel closes or
// the recorder is stopped. A zero retention keeps events forever.
func NewHistoryRecorder(repo repository.PortEventRepository, events <-chan model.PortEvent, retention time.Duration, logger *zap.Logger) *HistoryRecorder {
	r := &HistoryRecorder{
		repo:      repo,
		events:    events,
		retention: retention,
		logger:    utils.NewServiceLogger(logger, "history-recorder"),
	}
	r.Loop = lifecycle.Go("history", r.run)
	return r
}

func (r *HistoryRecorder) run(ctx context.Context) {
	var cleanup <-chan time.Time
	if r.retention > 0 {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		cleanup = ticker.C
		r.expire(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup:
			r.expire(ctx)
		case event, ok := <-r.events:
			if !ok {
				return
			}
			r.record(ctx, event)
		}
	}
}

func (r *HistoryRecorder) record(ctx context.Context, event model.PortEvent) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, &event); err != nil {
		r.logger.Warn("Failed to record port event",
			zap.String("event_type", string(event.EventType)),
			zap.String("port", event.Port.Name),
			zap.Error(err),
		)
	}
}

func (r *HistoryRecorder) expire(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	deleted, err := r.repo.DeleteOlderThan(ctx, time.Now().Add(-r.retention))
	if err != nil {
		r.logger.Warn("Failed to expire port history", zap.Error(err))
		return
	}
	if deleted > 0 {
		r.logger.Info("Expired port history", zap.Int64("deleted", deleted))
	}
}
