//go:build !windows

// internal/handles/table_other.go
package handles

import (
	"context"
)

type unsupportedTable struct{}

// NewHandleTable returns the platform handle table
func NewHandleTable() HandleTable {
	return unsupportedTable{}
}

func (unsupportedTable) Snapshot(context.Context) ([]HandleEntry, error) {
	return nil, ErrUnsupported
}
