// internal/handler/errors.go
package handler

import (
	"context"
	"errors"
	"net/http"

	"comport-service/internal/handles"
	"comport-service/internal/registry"
	"comport-service/internal/service"
)

// errorStatus maps service errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrPortNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInspectorUnavailable),
		errors.Is(err, handles.ErrStopped),
		errors.Is(err, registry.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
