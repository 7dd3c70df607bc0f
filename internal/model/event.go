// internal/model/event.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of port event
type EventType string

const (
	EventPortAdded        EventType = "PORT_ADDED"
	EventPortStateChanged EventType = "PORT_STATE_CHANGED"
	EventPortDescription  EventType = "PORT_DESCRIPTION_CHANGED"
	EventPortOwnerChanged EventType = "PORT_OWNER_CHANGED"
	EventPortRemoved      EventType = "PORT_REMOVED"
)

// JSONObject type for PostgreSQL JSONB objects
type JSONObject map[string]interface{}

func (j *JSONObject) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// PortEvent records a change of a tracked port
type PortEvent struct {
	ID        uuid.UUID  `json:"id"`
	EventType EventType  `json:"event_type"`
	Port      Port       `json:"port"`
	Data      JSONObject `json:"data,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	Source    string     `json:"source"`
}

// NewPortEvent creates an event carrying a snapshot of the port
func NewPortEvent(eventType EventType, port *Port, source string, data JSONObject) PortEvent {
	return PortEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Port:      port.Clone(),
		Data:      data,
		Timestamp: time.Now(),
		Source:    source,
	}
}
