package handles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHandleTable(t *testing.T) {
	in := []HandleEntry{
		{Object: 0xffff8000deadbeef, PID: 100, Handle: 0x44, Access: 0x12019f, TypeIndex: 37, Attributes: 2},
		{Object: 0xffff8000cafebabe, PID: 4, Handle: 0x8, Access: 0x1fffff, TraceIndex: 1},
	}

	out, err := ParseHandleTable(EncodeHandleTable(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseHandleTable_Bounds(t *testing.T) {
	_, err := ParseHandleTable(make([]byte, 15))
	assert.ErrorIs(t, err, ErrTruncatedTable)

	buf := EncodeHandleTable(make([]HandleEntry, 3))
	_, err = ParseHandleTable(buf[:len(buf)-1])
	assert.ErrorIs(t, err, ErrTruncatedTable)

	// a corrupt count must not cause an out of range read
	buf[0], buf[7] = 0xff, 0xff
	_, err = ParseHandleTable(buf)
	assert.ErrorIs(t, err, ErrTruncatedTable)

	// trailing slack after the declared records is fine
	entries, err := ParseHandleTable(append(EncodeHandleTable(make([]HandleEntry, 1)), make([]byte, 64)...))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestGroupByProcess(t *testing.T) {
	groups := GroupByProcess([]HandleEntry{
		{PID: 30, Handle: 4},
		{PID: 10, Handle: 8},
		{PID: 77, Handle: 1},
		{PID: 30, Handle: 12},
		{PID: 10, Handle: 4},
	}, 77)

	assert.Equal(t, []ProcessHandles{
		{PID: 10, Handles: []int32{8, 4}},
		{PID: 30, Handles: []int32{4, 12}},
	}, groups)
}

func TestNextTableBufferSize(t *testing.T) {
	assert.Equal(t, 0x20000, nextTableBufferSize(0x10000, 0x10001))
	assert.Equal(t, 0x30000, nextTableBufferSize(0x10000, 0x30000))
	// a stale or zero length still grows the buffer
	assert.Equal(t, 0x20000, nextTableBufferSize(0x10000, 0))
	assert.Equal(t, 0x30000, nextTableBufferSize(0x20000, 0x18000))
}
