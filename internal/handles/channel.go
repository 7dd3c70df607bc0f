// internal/handles/channel.go
package handles

import (
	"context"
	"fmt"
	"io"
)

//go:generate mockgen -source=channel.go -destination=mock_channel.go -package=handles

// Channel is a connected duplex message channel to the worker
type Channel interface {
	// Exchange sends one request and reads exactly one response
	Exchange(ctx context.Context, req Request) (Response, error)
	Close() error
}

// Listener waits for the worker to connect
type Listener interface {
	// Accept blocks until a worker connects or ctx is cancelled
	Accept(ctx context.Context) (Channel, error)
}

// streamChannel frames requests and responses over a byte stream. Each frame
// has a fixed size so no length prefix is needed.
type streamChannel struct {
	rw     io.ReadWriteCloser
	closed bool
}

// NewStreamChannel wraps rw as a Channel. Context cancellation closes rw to
// unblock pending I/O.
func NewStreamChannel(rw io.ReadWriteCloser) Channel {
	return &streamChannel{rw: rw}
}

func (c *streamChannel) Exchange(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	stop := context.AfterFunc(ctx, func() { c.rw.Close() })
	defer stop()

	data, _ := req.MarshalBinary()
	if _, err := c.rw.Write(data); err != nil {
		return Response{}, c.ioError(ctx, "write request", err)
	}

	buf := make([]byte, ResponseSize)
	if _, err := io.ReadFull(c.rw, buf); err != nil {
		return Response{}, c.ioError(ctx, "read response", err)
	}

	var resp Response
	if err := resp.UnmarshalBinary(buf); err != nil {
		return Response{}, err
	}
	return resp, nil
}

func (c *streamChannel) ioError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == io.ErrUnexpectedEOF {
		return fmt.Errorf("%s: %w", op, ErrShortRead)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *streamChannel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rw.Close()
}
