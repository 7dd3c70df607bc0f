// internal/repository/port_event_repository.go
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"comport-service/internal/database"
	"comport-service/internal/model"
	"comport-service/internal/utils"
)

// portEventRepository implements PortEventRepository on PostgreSQL
type portEventRepository struct {
	db     *database.DB
	logger *utils.ServiceLogger
}

// NewPortEventRepository creates a new port event repository
func NewPortEventRepository(db *database.DB, logger *zap.Logger) PortEventRepository {
	return &portEventRepository{
		db:     db,
		logger: utils.NewServiceLogger(logger, "port-event-repository"),
	}
}

// Create stores one port event
func (r *portEventRepository) Create(ctx context.Context, event *model.PortEvent) error {
	query := `
		INSERT INTO port_events (
			id, event_type, port_number, port_name, device_name, state,
			description, owner, data, source, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	data := event.Data
	if data == nil {
		data = model.JSONObject{}
	}

	args := []interface{}{
		event.ID, event.EventType, event.Port.Number, event.Port.Name,
		event.Port.DeviceName, event.Port.State.String(),
		nullString(event.Port.Description), nullString(event.Port.ProcessName),
		data, event.Source, event.Timestamp,
	}

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query, args...)
	r.logger.LogDatabaseQuery(query, args, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to store port event: %w", err)
	}

	return nil
}

// ListByPort returns the newest events of one port first
func (r *portEventRepository) ListByPort(ctx context.Context, number int, filter *HistoryFilter) ([]*model.PortEvent, error) {
	limit := DefaultHistoryLimit
	since := time.Time{}
	if filter != nil {
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		since = filter.Since
	}

	query := `
		SELECT id, event_type, port_number, port_name, device_name, state,
			   description, owner, data, source, occurred_at
		FROM port_events
		WHERE port_number = $1 AND occurred_at >= $2
		ORDER BY occurred_at DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, number, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list port events: %w", err)
	}
	defer rows.Close()

	events := []*model.PortEvent{}
	for rows.Next() {
		var (
			event       model.PortEvent
			state       string
			description sql.NullString
			owner       sql.NullString
		)
		err := rows.Scan(
			&event.ID, &event.EventType, &event.Port.Number, &event.Port.Name,
			&event.Port.DeviceName, &state, &description, &owner,
			&event.Data, &event.Source, &event.Timestamp,
		)
		if err != nil {
			r.logger.Error("Failed to scan port event", zap.Error(err))
			continue
		}

		if err := event.Port.State.UnmarshalText([]byte(state)); err != nil {
			r.logger.Warn("Unknown port state in history", zap.String("state", state))
		}
		event.Port.Description = stringPtr(description)
		event.Port.ProcessName = stringPtr(owner)
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read port events: %w", err)
	}
	return events, nil
}

// DeleteOlderThan removes events that occurred before t
func (r *portEventRepository) DeleteOlderThan(ctx context.Context, t time.Time) (int64, error) {
	query := `DELETE FROM port_events WHERE occurred_at < $1`

	start := time.Now()
	result, err := r.db.ExecContext(ctx, query, t)
	r.logger.LogDatabaseQuery(query, []interface{}{t}, time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old port events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted port events: %w", err)
	}
	return deleted, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return model.StringPtr(s.String)
}
