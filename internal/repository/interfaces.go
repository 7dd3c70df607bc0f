// internal/repository/interfaces.go
package repository

import (
	"context"
	"time"

	"comport-service/internal/model"
)

// DefaultHistoryLimit caps history queries without an explicit limit
const DefaultHistoryLimit = 100

// PortEventRepository defines port history data access operations
type PortEventRepository interface {
	Create(ctx context.Context, event *model.PortEvent) error
	ListByPort(ctx context.Context, number int, filter *HistoryFilter) ([]*model.PortEvent, error)

	// Cleanup
	DeleteOlderThan(ctx context.Context, t time.Time) (int64, error)
}

// HistoryFilter represents port history filters
type HistoryFilter struct {
	Limit int       `json:"limit"`
	Since time.Time `json:"since"`
}
