//go:build windows

// internal/handles/worker/resolver_windows.go
package worker

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"comport-service/internal/handles"
)

const (
	objectNameInformation = 1
	objectTypeInformation = 2

	// some named pipe handles block the name query forever
	nameQueryTimeout = 100 * time.Millisecond
	maxStuckQueries  = 8

	initialObjectBufferSize = 1024
	maxObjectBufferSize     = 64 * 1024
)

var (
	ntdll             = windows.NewLazySystemDLL("ntdll.dll")
	procNtQueryObject = ntdll.NewProc("NtQueryObject")
)

// SystemResolver duplicates handles out of other processes and reads their
// kernel object names
type SystemResolver struct {
	selfPID uint32
	stuck   atomic.Int32
	logger  *zap.Logger
}

// NewResolver checks that the native API is available
func NewResolver(logger *zap.Logger) (*SystemResolver, error) {
	if err := procNtQueryObject.Find(); err != nil {
		return nil, fmt.Errorf("NtQueryObject unavailable: %w", err)
	}
	return &SystemResolver{
		selfPID: windows.GetCurrentProcessId(),
		logger:  logger,
	}, nil
}

// Exhausted reports whether too many name queries never returned. The
// process should exit so that it gets restarted.
func (r *SystemResolver) Exhausted() bool {
	return r.stuck.Load() >= maxStuckQueries
}

// Resolve implements Resolver
func (r *SystemResolver) Resolve(req handles.Request) handles.Response {
	if uint32(req.PID) == r.selfPID {
		return handles.StatusResponse(handles.StatusSameProcess)
	}

	proc, err := windows.OpenProcess(windows.PROCESS_DUP_HANDLE, false, uint32(req.PID))
	if err != nil {
		return handles.StatusResponse(handles.StatusOpenProcessFailed)
	}
	defer windows.CloseHandle(proc)

	var dup windows.Handle
	err = windows.DuplicateHandle(proc, windows.Handle(uint32(req.Handle)), windows.CurrentProcess(), &dup, 0, false, windows.DUPLICATE_SAME_ACCESS)
	if err != nil {
		return handles.StatusResponse(handles.StatusDuplicateFailed)
	}

	typ, err := queryObject(dup, objectTypeInformation)
	if err != nil {
		windows.CloseHandle(dup)
		return handles.StatusResponse(handles.StatusQueryTypeFailed)
	}
	if typ != "File" {
		windows.CloseHandle(dup)
		return handles.StatusResponse(handles.StatusInvalidType)
	}

	name, err := r.queryName(dup)
	if err != nil {
		return handles.StatusResponse(handles.StatusQueryNameFailed)
	}
	return handles.NameResponse(name)
}

// queryName takes ownership of h. The query runs on its own goroutine so a
// blocked call only costs that goroutine.
func (r *SystemResolver) queryName(h windows.Handle) (string, error) {
	if r.Exhausted() {
		windows.CloseHandle(h)
		return "", errors.New("too many stuck name queries")
	}

	type result struct {
		name string
		err  error
	}
	done := make(chan result, 1)

	r.stuck.Add(1)
	go func() {
		defer r.stuck.Add(-1)
		defer windows.CloseHandle(h)

		name, err := queryObject(h, objectNameInformation)
		done <- result{name: name, err: err}
	}()

	timer := time.NewTimer(nameQueryTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.name, res.err
	case <-timer.C:
		r.logger.Debug("Name query timed out", zap.Int32("stuck", r.stuck.Load()))
		return "", errors.New("name query timed out")
	}
}

// queryObject returns the UNICODE_STRING at the start of an object information
// class result
func queryObject(h windows.Handle, class uint32) (string, error) {
	buf := make([]byte, initialObjectBufferSize)

	for {
		var required uint32
		r1, _, _ := procNtQueryObject.Call(
			uintptr(h),
			uintptr(class),
			uintptr(unsafe.Pointer(&buf[0])),
			uintptr(len(buf)),
			uintptr(unsafe.Pointer(&required)),
		)

		switch status := windows.NTStatus(r1); status {
		case windows.STATUS_SUCCESS:
			us := (*windows.NTUnicodeString)(unsafe.Pointer(&buf[0]))
			if us.Length == 0 || us.Buffer == nil {
				return "", nil
			}
			return us.String(), nil
		case windows.STATUS_INFO_LENGTH_MISMATCH, windows.STATUS_BUFFER_OVERFLOW, windows.STATUS_BUFFER_TOO_SMALL:
			if int(required) <= len(buf) || int(required) > maxObjectBufferSize {
				return "", status
			}
			buf = make([]byte, required)
		default:
			return "", status
		}
	}
}
