//go:build !windows

// internal/handles/pipe_other.go
package handles

import (
	"context"
)

type unsupportedListener struct{}

// NewListener returns a listener that always fails with ErrUnsupported
func NewListener(name string) Listener {
	return unsupportedListener{}
}

func (unsupportedListener) Accept(ctx context.Context) (Channel, error) {
	return nil, ErrUnsupported
}
