//go:build windows

// internal/handles/pipe_windows.go
package handles

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/windows"
)

// PipeListener serves one message-mode named pipe instance
type PipeListener struct {
	name string
}

// NewListener creates a listener for the pipe at name, e.g. \\.\pipe\ComViewHandle
func NewListener(name string) Listener {
	return &PipeListener{name: name}
}

// Accept creates the pipe instance and waits for the worker to connect
func (l *PipeListener) Accept(ctx context.Context) (Channel, error) {
	name, err := windows.UTF16PtrFromString(l.name)
	if err != nil {
		return nil, fmt.Errorf("invalid pipe name %q: %w", l.name, err)
	}

	h, err := windows.CreateNamedPipe(name,
		windows.PIPE_ACCESS_DUPLEX|windows.FILE_FLAG_OVERLAPPED,
		windows.PIPE_TYPE_MESSAGE|windows.PIPE_READMODE_MESSAGE|windows.PIPE_WAIT,
		1, ResponseSize, RequestSize, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("create pipe %s: %w", l.name, err)
	}

	p := &pipe{handle: h}
	if err := p.connect(ctx); err != nil {
		windows.CloseHandle(h)
		return nil, err
	}
	return p, nil
}

type pipe struct {
	handle windows.Handle
	once   sync.Once
}

func (p *pipe) connect(ctx context.Context) error {
	err := p.overlapped(ctx, func(o *windows.Overlapped) error {
		return windows.ConnectNamedPipe(p.handle, o)
	})
	// a client that connected between create and connect is still a connection
	if errors.Is(err, windows.ERROR_PIPE_CONNECTED) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("connect pipe: %w", err)
	}
	return nil
}

func (p *pipe) Exchange(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	data, _ := req.MarshalBinary()
	var written uint32
	err := p.overlappedN(ctx, &written, func(o *windows.Overlapped) error {
		return windows.WriteFile(p.handle, data, &written, o)
	})
	if err != nil {
		return Response{}, fmt.Errorf("write request: %w", err)
	}
	if written != RequestSize {
		return Response{}, fmt.Errorf("write request: %w", ErrShortRead)
	}

	buf := make([]byte, ResponseSize)
	var read uint32
	err = p.overlappedN(ctx, &read, func(o *windows.Overlapped) error {
		return windows.ReadFile(p.handle, buf, &read, o)
	})
	if errors.Is(err, windows.ERROR_MORE_DATA) {
		return Response{}, fmt.Errorf("read response: %w", ErrShortRead)
	}
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := resp.UnmarshalBinary(buf[:read]); err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (p *pipe) Close() error {
	var err error
	p.once.Do(func() {
		windows.DisconnectNamedPipe(p.handle)
		err = windows.CloseHandle(p.handle)
	})
	return err
}

func (p *pipe) overlapped(ctx context.Context, op func(o *windows.Overlapped) error) error {
	var n uint32
	return p.overlappedN(ctx, &n, op)
}

// overlappedN runs op with an overlapped structure and waits for completion.
// Cancelling ctx cancels the pending I/O.
func (p *pipe) overlappedN(ctx context.Context, n *uint32, op func(o *windows.Overlapped) error) error {
	event, err := windows.CreateEvent(nil, 1, 0, nil)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	defer windows.CloseHandle(event)

	o := &windows.Overlapped{HEvent: event}
	err = op(o)
	if err == nil {
		return nil
	}
	if !errors.Is(err, windows.ERROR_IO_PENDING) {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		windows.CancelIoEx(p.handle, o)
	})
	defer stop()

	err = windows.GetOverlappedResult(p.handle, o, n, true)
	if errors.Is(err, windows.ERROR_OPERATION_ABORTED) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
