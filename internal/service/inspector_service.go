// internal/service/inspector_service.go
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"comport-service/internal/handles"
	"comport-service/internal/model"
	"comport-service/internal/utils"
)

// ErrInspectorUnavailable is returned when handle correlation is not running
var ErrInspectorUnavailable = errors.New("handle inspection is not running")

// HandleInspector is the consumer query surface of the handle poller
type HandleInspector interface {
	QueryPIDs(ctx context.Context) ([]int32, error)
	QueryHandles(ctx context.Context, pid int32) ([]handles.HandleInfo, error)
}

// ProcessInfo describes a process holding cached handles
type ProcessInfo struct {
	PID  int32  `json:"pid"`
	Name string `json:"name"`
}

// InspectorService exposes the handle cache of the correlation poller
type InspectorService struct {
	inspector HandleInspector
	namer     handles.ProcessNamer
	logger    *utils.ServiceLogger
}

// NewInspectorService creates a new inspector service. inspector may be nil
// when handle correlation is disabled.
func NewInspectorService(inspector HandleInspector, namer handles.ProcessNamer, logger *zap.Logger) *InspectorService {
	return &InspectorService{
		inspector: inspector,
		namer:     namer,
		logger:    utils.NewServiceLogger(logger, "inspector-service"),
	}
}

// Available reports whether queries can be answered
func (s *InspectorService) Available() bool {
	return s.inspector != nil
}

// ListProcesses returns the processes with cached handles in ascending pid
// order
func (s *InspectorService) ListProcesses(ctx context.Context) ([]ProcessInfo, error) {
	if s.inspector == nil {
		return nil, ErrInspectorUnavailable
	}

	pids, err := s.inspector.QueryPIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query processes: %w", err)
	}

	processes := make([]ProcessInfo, len(pids))
	for i, pid := range pids {
		processes[i] = ProcessInfo{PID: pid, Name: s.processName(ctx, pid)}
	}
	return processes, nil
}

// ListHandles returns the cached handles of pid in ascending handle order
func (s *InspectorService) ListHandles(ctx context.Context, pid int32) ([]handles.HandleInfo, error) {
	if s.inspector == nil {
		return nil, ErrInspectorUnavailable
	}

	infos, err := s.inspector.QueryHandles(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("failed to query handles of process %d: %w", pid, err)
	}
	return infos, nil
}

func (s *InspectorService) processName(ctx context.Context, pid int32) string {
	if s.namer == nil {
		return model.UnknownProcess
	}
	name, err := s.namer.Name(ctx, pid)
	if err != nil || name == "" {
		return model.UnknownProcess
	}
	return name
}
