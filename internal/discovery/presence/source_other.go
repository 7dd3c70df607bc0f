//go:build !windows

// internal/discovery/presence/source_other.go
package presence

import (
	"context"
	"fmt"

	"go.bug.st/serial/enumerator"
)

// EnumeratorSource lists serial ports through the platform enumerator. The
// device name doubles as the device identifier.
type EnumeratorSource struct{}

// NewPortSource returns the platform port source
func NewPortSource() PortSource {
	return EnumeratorSource{}
}

// Registrations implements PortSource
func (EnumeratorSource) Registrations(ctx context.Context) ([]Registration, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	registrations := make([]Registration, 0, len(ports))
	for _, port := range ports {
		registrations = append(registrations, Registration{PortName: port.Name, DeviceName: port.Name})
	}
	return registrations, nil
}

// EnumeratorCaptionSource renders "<product> (<port name>)" captions from
// USB descriptors
type EnumeratorCaptionSource struct {
	vendors *VendorDatabase
}

// NewCaptionSource returns the platform caption source
func NewCaptionSource() (CaptionSource, error) {
	return &EnumeratorCaptionSource{vendors: NewVendorDatabase()}, nil
}

// Captions implements CaptionSource
func (s *EnumeratorCaptionSource) Captions(ctx context.Context) ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return captionsFromDetails(s.vendors, ports), nil
}

// Close implements CaptionSource
func (s *EnumeratorCaptionSource) Close() error {
	return nil
}

func captionsFromDetails(vendors *VendorDatabase, ports []*enumerator.PortDetails) []string {
	captions := make([]string, 0, len(ports))
	for _, port := range ports {
		if !port.IsUSB {
			continue
		}

		product := port.Product
		if product == "" {
			desc, ok := vendors.Describe(port.VID, port.PID)
			if !ok {
				continue
			}
			product = desc
		}
		captions = append(captions, fmt.Sprintf("%s (%s)", product, port.Name))
	}
	return captions
}
