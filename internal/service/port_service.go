// internal/service/port_service.go
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"comport-service/internal/model"
	"comport-service/internal/repository"
	"comport-service/internal/utils"
)

// ErrPortNotFound is returned for port numbers that are not tracked
var ErrPortNotFound = errors.New("port not found")

// PortReader is the read side of the port registry
type PortReader interface {
	Snapshot(ctx context.Context) ([]model.Port, error)
	Get(ctx context.Context, number int) (model.Port, bool, error)
}

// PortService answers port queries
type PortService struct {
	ports   PortReader
	history repository.PortEventRepository
	logger  *utils.ServiceLogger
}

// NewPortService creates a new port service. history may be nil.
func NewPortService(ports PortReader, history repository.PortEventRepository, logger *zap.Logger) *PortService {
	return &PortService{
		ports:   ports,
		history: history,
		logger:  utils.NewServiceLogger(logger, "port-service"),
	}
}

// PortFilter narrows a port listing
type PortFilter struct {
	State *model.PresentState
	Owned *bool
}

func (f *PortFilter) matches(p *model.Port) bool {
	if f == nil {
		return true
	}
	if f.State != nil && p.State != *f.State {
		return false
	}
	if f.Owned != nil && (p.ProcessName != nil) != *f.Owned {
		return false
	}
	return true
}

// ListPorts returns the tracked ports in ascending number order
func (s *PortService) ListPorts(ctx context.Context, filter *PortFilter) ([]model.Port, error) {
	ports, err := s.ports.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ports: %w", err)
	}

	result := make([]model.Port, 0, len(ports))
	for i := range ports {
		if filter.matches(&ports[i]) {
			result = append(result, ports[i])
		}
	}
	return result, nil
}

// GetPort returns one tracked port
func (s *PortService) GetPort(ctx context.Context, number int) (*model.Port, error) {
	port, ok, err := s.ports.Get(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("failed to read port: %w", err)
	}
	if !ok {
		return nil, ErrPortNotFound
	}
	return &port, nil
}

// GetHistory returns recorded events of a port, newest first. Ports that are
// no longer tracked still have history.
func (s *PortService) GetHistory(ctx context.Context, number int, filter *repository.HistoryFilter) ([]*model.PortEvent, error) {
	if s.history == nil {
		return []*model.PortEvent{}, nil
	}

	events, err := s.history.ListByPort(ctx, number, filter)
	if err != nil {
		s.logger.Error("Failed to read port history", zap.Int("number", number), zap.Error(err))
		return nil, fmt.Errorf("failed to read port history: %w", err)
	}
	return events, nil
}
