//go:build windows

// internal/handles/table_windows.go
package handles

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// SystemHandleTable queries the kernel handle table. The buffer is reused
// between calls and only grows.
type SystemHandleTable struct {
	buf []byte
}

// NewHandleTable returns the platform handle table
func NewHandleTable() HandleTable {
	return &SystemHandleTable{buf: make([]byte, initialTableBufferSize)}
}

// Snapshot implements HandleTable
func (t *SystemHandleTable) Snapshot(ctx context.Context) ([]HandleEntry, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var returned uint32
		err := windows.NtQuerySystemInformation(
			windows.SystemExtendedHandleInformation,
			unsafe.Pointer(&t.buf[0]),
			uint32(len(t.buf)),
			&returned,
		)
		if errors.Is(err, windows.STATUS_INFO_LENGTH_MISMATCH) {
			t.buf = make([]byte, nextTableBufferSize(len(t.buf), int(returned)))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query system handles: %w", err)
		}

		n := int(returned)
		if n == 0 || n > len(t.buf) {
			n = len(t.buf)
		}
		return ParseHandleTable(t.buf[:n])
	}
}
