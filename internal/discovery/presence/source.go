// internal/discovery/presence/source.go
package presence

import (
	"context"
	"sort"
	"strings"

	"comport-service/internal/model"
)

// Registration is one OS serial port registration
type Registration struct {
	PortName   string `json:"port_name"`
	DeviceName string `json:"device_name"`
}

// PortSource enumerates the serial ports currently registered by the OS.
// A missing registration store yields an empty list, not an error.
type PortSource interface {
	Registrations(ctx context.Context) ([]Registration, error)
}

// CaptionSource lists human readable device captions. A caption describes a
// port when it ends with "(<port name>)".
type CaptionSource interface {
	Captions(ctx context.Context) ([]string, error)
	Close() error
}

// SystemPort is a filtered registration keyed by port number
type SystemPort struct {
	Number     int
	DeviceName string
}

// FilterRegistrations keeps registrations whose port name parses to a valid
// number and whose device name is not empty. The first registration of a
// number wins. The result is ordered by number.
func FilterRegistrations(naming model.Naming, registrations []Registration) []SystemPort {
	seen := make(map[int]struct{}, len(registrations))
	ports := make([]SystemPort, 0, len(registrations))

	for _, reg := range registrations {
		number, ok := naming.Parse(reg.PortName)
		if !ok {
			continue
		}
		if _, dup := seen[number]; dup {
			continue
		}
		if reg.DeviceName == "" {
			continue
		}

		seen[number] = struct{}{}
		ports = append(ports, SystemPort{Number: number, DeviceName: reg.DeviceName})
	}

	sort.Slice(ports, func(i, j int) bool { return ports[i].Number < ports[j].Number })
	return ports
}

// MatchCaption returns the description for portName from a caption list
func MatchCaption(captions []string, portName string) (string, bool) {
	suffix := "(" + portName + ")"

	for _, caption := range captions {
		caption = strings.TrimSpace(caption)
		if strings.HasSuffix(caption, suffix) {
			return strings.TrimSpace(strings.TrimSuffix(caption, suffix)), true
		}
	}
	return "", false
}
