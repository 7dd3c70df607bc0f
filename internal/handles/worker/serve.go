// internal/handles/worker/serve.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"comport-service/internal/handles"
)

// Resolver answers one handle name request
type Resolver interface {
	Resolve(req handles.Request) handles.Response
}

// ResolverFunc adapts a function to Resolver
type ResolverFunc func(req handles.Request) handles.Response

// Resolve calls f(req)
func (f ResolverFunc) Resolve(req handles.Request) handles.Response {
	return f(req)
}

// Serve answers requests read from conn until the peer disconnects or ctx is
// cancelled. A clean disconnect between requests returns nil.
func Serve(ctx context.Context, conn io.ReadWriter, resolver Resolver, logger *zap.Logger) error {
	if closer, ok := conn.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { closer.Close() })
		defer stop()
	}

	req := make([]byte, handles.RequestSize)
	served := 0

	for {
		if _, err := io.ReadFull(conn, req); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				logger.Info("Service disconnected", zap.Int("served", served))
				return nil
			}
			return fmt.Errorf("read request: %w", err)
		}

		var r handles.Request
		if err := r.UnmarshalBinary(req); err != nil {
			return err
		}

		resp := resolver.Resolve(r)
		data, _ := resp.MarshalBinary()
		if _, err := conn.Write(data); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("write response: %w", err)
		}

		served++
		if resp.Status != handles.StatusSuccess {
			logger.Debug("Handle not resolved",
				zap.Int32("pid", r.PID),
				zap.Int32("handle", r.Handle),
				zap.Stringer("status", resp.Status),
			)
		}
	}
}
