//go:build windows

// internal/handles/worker/dial_windows.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sys/windows"
)

// Dial connects to the service pipe, retrying every retryDelay until ctx is
// cancelled
func Dial(ctx context.Context, name string, retryDelay time.Duration) (io.ReadWriteCloser, error) {
	path, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("invalid pipe name %q: %w", name, err)
	}

	for {
		h, err := windows.CreateFile(path,
			windows.GENERIC_READ|windows.GENERIC_WRITE,
			0, nil, windows.OPEN_EXISTING, 0, 0)
		if err == nil {
			mode := uint32(windows.PIPE_READMODE_MESSAGE)
			if err := windows.SetNamedPipeHandleState(h, &mode, nil, nil); err != nil {
				windows.CloseHandle(h)
				return nil, fmt.Errorf("set pipe mode: %w", err)
			}
			return &pipeConn{handle: h}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

type pipeConn struct {
	handle windows.Handle
	once   sync.Once
}

func (c *pipeConn) Read(p []byte) (int, error) {
	var n uint32
	err := windows.ReadFile(c.handle, p, &n, nil)
	if errors.Is(err, windows.ERROR_BROKEN_PIPE) || errors.Is(err, windows.ERROR_PIPE_NOT_CONNECTED) {
		return int(n), io.EOF
	}
	return int(n), err
}

func (c *pipeConn) Write(p []byte) (int, error) {
	var n uint32
	err := windows.WriteFile(c.handle, p, &n, nil)
	return int(n), err
}

func (c *pipeConn) Close() error {
	var err error
	c.once.Do(func() {
		windows.CancelIoEx(c.handle, nil)
		err = windows.CloseHandle(c.handle)
	})
	return err
}
