//go:build windows

// internal/discovery/presence/source_windows.go
package presence

import (
	"context"
	"errors"
	"fmt"

	winreg "golang.org/x/sys/windows/registry"
)

const serialCommKey = `HARDWARE\DEVICEMAP\SERIALCOMM`

// RegistrySource reads serial port registrations from the device map. Value
// names are device identifiers, values are port names.
type RegistrySource struct{}

// NewPortSource returns the platform port source
func NewPortSource() PortSource {
	return RegistrySource{}
}

// Registrations implements PortSource
func (RegistrySource) Registrations(ctx context.Context) ([]Registration, error) {
	key, err := winreg.OpenKey(winreg.LOCAL_MACHINE, serialCommKey, winreg.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, winreg.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", serialCommKey, err)
	}
	defer key.Close()

	names, err := key.ReadValueNames(-1)
	if err != nil {
		return nil, fmt.Errorf("failed to read value names: %w", err)
	}

	registrations := make([]Registration, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		portName, _, err := key.GetStringValue(name)
		if err != nil {
			// value removed or retyped between the two reads
			continue
		}
		registrations = append(registrations, Registration{PortName: portName, DeviceName: name})
	}

	return registrations, nil
}
