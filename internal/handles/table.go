// internal/handles/table.go
package handles

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

const (
	handleTableHeaderSize = 16
	handleEntrySize       = 40
)

var (
	// ErrTruncatedTable is returned when the declared entry count does not fit the buffer
	ErrTruncatedTable = errors.New("truncated handle table")
	// ErrUnsupported is returned on platforms without handle inspection
	ErrUnsupported = errors.New("handle inspection is not supported on this platform")
)

// HandleEntry is one record of the extended system handle table
type HandleEntry struct {
	Object     uint64
	PID        uint64
	Handle     uint64
	Access     uint32
	TraceIndex uint16
	TypeIndex  uint16
	Attributes uint32
}

// HandleTable returns the handles open on the system
type HandleTable interface {
	Snapshot(ctx context.Context) ([]HandleEntry, error)
}

// ParseHandleTable decodes a SystemExtendedHandleInformation buffer. The
// buffer starts with {count, reserved} pointer-sized fields followed by count
// 40-byte records.
func ParseHandleTable(buf []byte) ([]HandleEntry, error) {
	if len(buf) < handleTableHeaderSize {
		return nil, fmt.Errorf("%w: %d byte header", ErrTruncatedTable, len(buf))
	}

	count := binary.LittleEndian.Uint64(buf[0:])
	capacity := uint64(len(buf)-handleTableHeaderSize) / handleEntrySize
	if count > capacity {
		return nil, fmt.Errorf("%w: %d entries declared, room for %d", ErrTruncatedTable, count, capacity)
	}

	entries := make([]HandleEntry, count)
	for i := range entries {
		rec := buf[handleTableHeaderSize+i*handleEntrySize:]
		entries[i] = HandleEntry{
			Object:     binary.LittleEndian.Uint64(rec[0:]),
			PID:        binary.LittleEndian.Uint64(rec[8:]),
			Handle:     binary.LittleEndian.Uint64(rec[16:]),
			Access:     binary.LittleEndian.Uint32(rec[24:]),
			TraceIndex: binary.LittleEndian.Uint16(rec[28:]),
			TypeIndex:  binary.LittleEndian.Uint16(rec[30:]),
			Attributes: binary.LittleEndian.Uint32(rec[32:]),
		}
	}
	return entries, nil
}

// ProcessHandles lists the handle values of one process in table order
type ProcessHandles struct {
	PID     int32
	Handles []int32
}

// GroupByProcess groups entries by process id, excluding selfPID. The result
// is ordered by process id.
func GroupByProcess(entries []HandleEntry, selfPID int32) []ProcessHandles {
	index := make(map[int32]int)
	var groups []ProcessHandles

	for _, e := range entries {
		pid := int32(e.PID)
		if pid == selfPID {
			continue
		}

		i, ok := index[pid]
		if !ok {
			i = len(groups)
			index[pid] = i
			groups = append(groups, ProcessHandles{PID: pid})
		}
		groups[i].Handles = append(groups[i].Handles, int32(e.Handle))
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].PID < groups[j].PID })
	return groups
}

// EncodeHandleTable builds a table buffer in the layout ParseHandleTable reads
func EncodeHandleTable(entries []HandleEntry) []byte {
	buf := make([]byte, handleTableHeaderSize+len(entries)*handleEntrySize)
	binary.LittleEndian.PutUint64(buf[0:], uint64(len(entries)))

	for i, e := range entries {
		rec := buf[handleTableHeaderSize+i*handleEntrySize:]
		binary.LittleEndian.PutUint64(rec[0:], e.Object)
		binary.LittleEndian.PutUint64(rec[8:], e.PID)
		binary.LittleEndian.PutUint64(rec[16:], e.Handle)
		binary.LittleEndian.PutUint32(rec[24:], e.Access)
		binary.LittleEndian.PutUint16(rec[28:], e.TraceIndex)
		binary.LittleEndian.PutUint16(rec[30:], e.TypeIndex)
		binary.LittleEndian.PutUint32(rec[32:], e.Attributes)
	}
	return buf
}

const (
	initialTableBufferSize = 0x10000
	tableBufferGranularity = 0x10000
)

// nextTableBufferSize rounds the size reported by the kernel up to the buffer
// granularity. It always grows the buffer so the retry loop terminates.
func nextTableBufferSize(current, required int) int {
	size := (required + tableBufferGranularity - 1) &^ (tableBufferGranularity - 1)
	if size <= current {
		size = current + tableBufferGranularity
	}
	return size
}
