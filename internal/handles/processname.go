// internal/handles/processname.go
package handles

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// SystemProcessNamer resolves process names through the operating system
type SystemProcessNamer struct{}

// NewProcessNamer creates a namer backed by gopsutil
func NewProcessNamer() *SystemProcessNamer {
	return &SystemProcessNamer{}
}

// Name returns the executable name of pid without its .exe extension
func (SystemProcessNamer) Name(ctx context.Context, pid int32) (string, error) {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", fmt.Errorf("open process %d: %w", pid, err)
	}

	name, err := proc.NameWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("read name of process %d: %w", pid, err)
	}
	return DisplayName(name), nil
}

// DisplayName strips a trailing .exe extension in any letter case
func DisplayName(executable string) string {
	if len(executable) > 4 && strings.EqualFold(executable[len(executable)-4:], ".exe") {
		return executable[:len(executable)-4]
	}
	return executable
}
