// internal/registry/tx.go
package registry

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"comport-service/internal/model"
)

// Tx gives an Update callback access to the port list. It must not be used
// after the callback returns.
type Tx struct {
	registry *Registry
	source   string
	events   []model.PortEvent
}

func (tx *Tx) emit(eventType model.EventType, port *model.Port, data model.JSONObject) {
	tx.events = append(tx.events, model.NewPortEvent(eventType, port, tx.source, data))
}

// Len returns the number of tracked ports
func (tx *Tx) Len() int {
	return len(tx.registry.ports)
}

// Ports returns copies of all tracked ports in ascending number order
func (tx *Tx) Ports() []model.Port {
	ports := make([]model.Port, len(tx.registry.ports))
	for i, p := range tx.registry.ports {
		ports[i] = p.Clone()
	}
	return ports
}

// Get returns a copy of the port with the given number
func (tx *Tx) Get(number int) (model.Port, bool) {
	i, ok := tx.registry.index(number)
	if !ok {
		return model.Port{}, false
	}
	return tx.registry.ports[i].Clone(), true
}

// Insert adds a new port keeping the list ordered by number
func (tx *Tx) Insert(number int, deviceName string, state model.PresentState) error {
	r := tx.registry

	i, exists := r.index(number)
	if exists {
		return fmt.Errorf("port %s already tracked", r.naming.Render(number))
	}

	port, err := model.NewPort(r.naming, number, deviceName)
	if err != nil {
		return err
	}
	port.State = state

	r.ports = slices.Insert(r.ports, i, port)
	r.portLogger(port).Info("Port added", zap.String("state", state.String()))
	tx.emit(model.EventPortAdded, port, nil)
	return nil
}

// Remove deletes a port. It reports whether the port was tracked.
func (tx *Tx) Remove(number int) bool {
	r := tx.registry

	i, ok := r.index(number)
	if !ok {
		return false
	}

	port := r.ports[i]
	r.ports = slices.Delete(r.ports, i, i+1)
	r.portLogger(port).Info("Port deleted")
	tx.emit(model.EventPortRemoved, port, nil)
	return true
}

// SetState changes the presence state. Entering Removed clears the owner.
func (tx *Tx) SetState(number int, state model.PresentState) bool {
	r := tx.registry

	i, ok := r.index(number)
	if !ok {
		return false
	}

	port := r.ports[i]
	if port.State == state {
		return true
	}

	from := port.State
	port.State = state
	r.portLogger(port).LogStateChange(from.String(), state.String())
	tx.emit(model.EventPortStateChanged, port, model.JSONObject{
		"from": from.String(),
		"to":   state.String(),
	})

	if state == model.StateRemoved {
		tx.setOwner(port, nil)
	}
	return true
}

// SetDescription sets the human readable description of a port
func (tx *Tx) SetDescription(number int, description string) bool {
	r := tx.registry

	i, ok := r.index(number)
	if !ok {
		return false
	}

	port := r.ports[i]
	if port.Description != nil && *port.Description == description {
		return true
	}

	port.Description = model.StringPtr(description)
	tx.emit(model.EventPortDescription, port, nil)
	return true
}

// SetOwner sets or clears (owner == nil) the owning process of a port
func (tx *Tx) SetOwner(number int, owner *string) bool {
	r := tx.registry

	i, ok := r.index(number)
	if !ok {
		return false
	}

	tx.setOwner(r.ports[i], owner)
	return true
}

// SetOwners applies a device identifier to process name mapping. Ports whose
// device identifier is missing from owners lose their owner. Removed ports are
// left untouched.
func (tx *Tx) SetOwners(owners map[string]string) {
	for _, port := range tx.registry.ports {
		if port.State == model.StateRemoved {
			continue
		}

		if name, ok := owners[port.DeviceName]; ok {
			tx.setOwner(port, model.StringPtr(name))
		} else {
			tx.setOwner(port, nil)
		}
	}
}

func (tx *Tx) setOwner(port *model.Port, owner *string) {
	from := port.Owner()
	if port.ProcessName == nil && owner == nil {
		return
	}
	if port.ProcessName != nil && owner != nil && *port.ProcessName == *owner {
		return
	}

	if owner == nil {
		port.ProcessName = nil
	} else {
		port.ProcessName = model.StringPtr(*owner)
	}

	tx.registry.portLogger(port).LogOwnerChange(from, port.Owner())
	tx.emit(model.EventPortOwnerChanged, port, model.JSONObject{
		"from": from,
		"to":   port.Owner(),
	})
}
