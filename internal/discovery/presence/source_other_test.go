//go:build !windows

package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.bug.st/serial/enumerator"
)

func TestCaptionsFromDetails(t *testing.T) {
	captions := captionsFromDetails(NewVendorDatabase(), []*enumerator.PortDetails{
		{Name: "/dev/ttyUSB0", IsUSB: true, Product: "USB-Serial Controller", VID: "067b", PID: "2303"},
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "10c4", PID: "ea60"},
		{Name: "/dev/ttyUSB2", IsUSB: true, VID: "ffff", PID: "0001"},
		{Name: "/dev/ttyS0"},
	})

	assert.Equal(t, []string{
		"USB-Serial Controller (/dev/ttyUSB0)",
		"Silicon Labs CP210x USB to UART Bridge (/dev/ttyUSB1)",
	}, captions)
}
