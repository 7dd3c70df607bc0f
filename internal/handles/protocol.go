// internal/handles/protocol.go
package handles

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

// Wire sizes of the worker protocol. All integers are little endian.
const (
	RequestSize      = 8
	ResponseSize     = 520
	ResponseDataSize = 512

	// the name payload starts with a UNICODE_STRING header and ends with a
	// UTF-16 terminator
	nameHeaderSize     = 16
	nameTerminatorSize = 2
)

var (
	// ErrUnknownStatus is returned when a response carries a status outside the protocol
	ErrUnknownStatus = errors.New("unknown handle status")
	// ErrShortRead is returned when a message is not exactly one protocol frame
	ErrShortRead = errors.New("short protocol frame")
)

// Status is the outcome of a worker name query
type Status int32

const (
	StatusSuccess Status = iota
	StatusSameProcess
	StatusOpenProcessFailed
	StatusDuplicateFailed
	StatusQueryTypeFailed
	StatusInvalidType
	StatusQueryNameFailed
)

var statusNames = [...]string{
	StatusSuccess:           "success",
	StatusSameProcess:       "same_process",
	StatusOpenProcessFailed: "open_process_failed",
	StatusDuplicateFailed:   "duplicate_failed",
	StatusQueryTypeFailed:   "query_type_failed",
	StatusInvalidType:       "invalid_type",
	StatusQueryNameFailed:   "query_name_failed",
}

// Valid reports whether s is a protocol status
func (s Status) Valid() bool {
	return s >= StatusSuccess && s <= StatusQueryNameFailed
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("status(%d)", int32(s))
	}
	return statusNames[s]
}

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownStatus, text)
}

// Request asks the worker to resolve the name of one handle
type Request struct {
	PID    int32
	Handle int32
}

// MarshalBinary implements encoding.BinaryMarshaler
func (r Request) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RequestSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(r.PID))
	binary.LittleEndian.PutUint32(buf[4:], uint32(r.Handle))
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (r *Request) UnmarshalBinary(data []byte) error {
	if len(data) != RequestSize {
		return fmt.Errorf("%w: request is %d bytes, want %d", ErrShortRead, len(data), RequestSize)
	}
	r.PID = int32(binary.LittleEndian.Uint32(data[0:]))
	r.Handle = int32(binary.LittleEndian.Uint32(data[4:]))
	return nil
}

// Response carries the worker's answer. Size is the number of meaningful
// bytes in Data.
type Response struct {
	Status Status
	Size   int32
	Data   [ResponseDataSize]byte
}

// MarshalBinary implements encoding.BinaryMarshaler
func (r Response) MarshalBinary() ([]byte, error) {
	buf := make([]byte, ResponseSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(r.Status))
	binary.LittleEndian.PutUint32(buf[4:], uint32(r.Size))
	copy(buf[8:], r.Data[:])
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Unknown statuses are
// rejected with ErrUnknownStatus.
func (r *Response) UnmarshalBinary(data []byte) error {
	if len(data) != ResponseSize {
		return fmt.Errorf("%w: response is %d bytes, want %d", ErrShortRead, len(data), ResponseSize)
	}

	status := Status(int32(binary.LittleEndian.Uint32(data[0:])))
	if !status.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownStatus, int32(status))
	}

	r.Status = status
	r.Size = int32(binary.LittleEndian.Uint32(data[4:]))
	copy(r.Data[:], data[8:])
	return nil
}

// Name decodes the handle name from a successful response. Sizes below the
// header plus terminator decode to an empty name.
func (r *Response) Name() string {
	return DecodeName(r.Data[:], int(r.Size))
}

// DecodeName decodes the UTF-16 name stored in data[16:size-2]. The range is
// clamped to data and odd trailing bytes are ignored.
func DecodeName(data []byte, size int) string {
	if size < nameHeaderSize+nameTerminatorSize {
		return ""
	}

	end := size - nameTerminatorSize
	if end > len(data) {
		end = len(data)
	}
	payload := data[nameHeaderSize:end]

	units := make([]uint16, len(payload)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(payload[i*2:])
	}
	return string(utf16.Decode(units))
}

// NameResponse builds a successful response for name, truncating names that
// do not fit the payload
func NameResponse(name string) Response {
	units := utf16.Encode([]rune(name))

	maxUnits := (ResponseDataSize - nameHeaderSize - nameTerminatorSize) / 2
	if len(units) > maxUnits {
		units = units[:maxUnits]
	}

	r := Response{Status: StatusSuccess}
	byteLen := len(units) * 2
	binary.LittleEndian.PutUint16(r.Data[0:], uint16(byteLen))
	binary.LittleEndian.PutUint16(r.Data[2:], uint16(byteLen+nameTerminatorSize))
	for i, u := range units {
		binary.LittleEndian.PutUint16(r.Data[nameHeaderSize+i*2:], u)
	}
	r.Size = int32(nameHeaderSize + byteLen + nameTerminatorSize)
	return r
}

// StatusResponse builds an empty response with the given status
func StatusResponse(status Status) Response {
	return Response{Status: status}
}
