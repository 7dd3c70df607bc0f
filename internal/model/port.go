// internal/model/port.go
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// PresentState represents the presence lifecycle stage of a port
type PresentState int

const (
	StateNewest PresentState = iota
	StateNormal
	StateRemoved
)

// String returns the wire name of the state
func (s PresentState) String() string {
	switch s {
	case StateNewest:
		return "NEWEST"
	case StateNormal:
		return "NORMAL"
	case StateRemoved:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s PresentState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *PresentState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "NEWEST":
		*s = StateNewest
	case "NORMAL":
		*s = StateNormal
	case "REMOVED":
		*s = StateRemoved
	default:
		return fmt.Errorf("unknown present state: %q", text)
	}
	return nil
}

// UnknownProcess is reported as owner when the owning process can no longer be opened
const UnknownProcess = "Unknown"

// Limit is an inclusive integer range
type Limit struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether value lies within the limit
func (l Limit) Contains(value int) bool {
	return l.Min <= value && value <= l.Max
}

// Clamp moves value into the limit
func (l Limit) Clamp(value int) int {
	if value < l.Min {
		return l.Min
	}
	if value > l.Max {
		return l.Max
	}
	return value
}

// DefaultNumberLimit is the valid port number range
var DefaultNumberLimit = Limit{Min: 1, Max: 255}

// DefaultNamePrefix is the port name prefix used by the OS
const DefaultNamePrefix = "COM"

// Naming renders and parses port names
type Naming struct {
	Prefix string
	Limit  Limit
}

// DefaultNaming returns the COM1..COM255 naming
func DefaultNaming() Naming {
	return Naming{Prefix: DefaultNamePrefix, Limit: DefaultNumberLimit}
}

// Render returns the port name for a number, e.g. COM7
func (n Naming) Render(number int) string {
	return n.Prefix + strconv.Itoa(number)
}

// Parse extracts the port number from a name. ok is false when the prefix does
// not match, the suffix is not a number or the number is outside the limit.
func (n Naming) Parse(name string) (number int, ok bool) {
	if !strings.HasPrefix(name, n.Prefix) {
		return 0, false
	}

	number, err := strconv.Atoi(name[len(n.Prefix):])
	if err != nil {
		return 0, false
	}

	if !n.Limit.Contains(number) {
		return 0, false
	}
	return number, true
}

// Port represents a tracked serial port. Number and DeviceName never change
// once the port is created.
type Port struct {
	Number      int          `json:"number"`
	Name        string       `json:"name"`
	DeviceName  string       `json:"device_name"`
	State       PresentState `json:"state"`
	Description *string      `json:"description,omitempty"`
	ProcessName *string      `json:"process_name,omitempty"`
}

// NewPort validates and creates a port in the Newest state
func NewPort(naming Naming, number int, deviceName string) (*Port, error) {
	if !naming.Limit.Contains(number) {
		return nil, fmt.Errorf("port number %d out of range [%d, %d]", number, naming.Limit.Min, naming.Limit.Max)
	}
	if deviceName == "" {
		return nil, fmt.Errorf("device name is required")
	}

	return &Port{
		Number:     number,
		Name:       naming.Render(number),
		DeviceName: deviceName,
		State:      StateNewest,
	}, nil
}

// HasDescription reports whether a description has been resolved
func (p *Port) HasDescription() bool {
	return p.Description != nil
}

// Owner returns the owning process name or an empty string
func (p *Port) Owner() string {
	if p.ProcessName == nil {
		return ""
	}
	return *p.ProcessName
}

// Clone returns a deep copy of the port
func (p *Port) Clone() Port {
	c := *p
	if p.Description != nil {
		d := *p.Description
		c.Description = &d
	}
	if p.ProcessName != nil {
		n := *p.ProcessName
		c.ProcessName = &n
	}
	return c
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
