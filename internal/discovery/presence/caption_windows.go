//go:build windows

// internal/discovery/presence/caption_windows.go
package presence

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

const (
	wmiNamespace = `root\CIMV2`
	captionQuery = "SELECT Caption FROM Win32_PnPEntity"

	sFalse = 0x00000001
)

type captionResult struct {
	captions []string
	err      error
}

// WMICaptionSource queries Plug and Play entity captions through WMI. COM
// objects live on a single locked OS thread owned by the source.
type WMICaptionSource struct {
	requests chan chan captionResult
	quit     chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewCaptionSource connects to WMI and returns the platform caption source
func NewCaptionSource() (CaptionSource, error) {
	s := &WMICaptionSource{
		requests: make(chan chan captionResult),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	ready := make(chan error, 1)
	go s.run(ready)

	if err := <-ready; err != nil {
		return nil, err
	}
	return s, nil
}

func (s *WMICaptionSource) run(ready chan<- error) {
	defer close(s.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || oleErr.Code() != sFalse {
			ready <- fmt.Errorf("failed to initialize COM: %w", err)
			return
		}
	}
	defer ole.CoUninitialize()

	service, err := connectWMI()
	if err != nil {
		ready <- err
		return
	}
	defer service.Release()

	ready <- nil

	for {
		select {
		case <-s.quit:
			return
		case reply := <-s.requests:
			captions, err := queryCaptions(service)
			reply <- captionResult{captions: captions, err: err}
		}
	}
}

// Captions implements CaptionSource
func (s *WMICaptionSource) Captions(ctx context.Context) ([]string, error) {
	reply := make(chan captionResult, 1)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, errors.New("caption source closed")
	case s.requests <- reply:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-reply:
		return result.captions, result.err
	}
}

// Close releases the WMI connection
func (s *WMICaptionSource) Close() error {
	s.once.Do(func() {
		close(s.quit)
	})
	<-s.done
	return nil
}

func connectWMI() (*ole.IDispatch, error) {
	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return nil, fmt.Errorf("failed to create WMI locator: %w", err)
	}
	defer unknown.Release()

	locator, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("failed to query WMI locator: %w", err)
	}
	defer locator.Release()

	serviceRaw, err := oleutil.CallMethod(locator, "ConnectServer", nil, wmiNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", wmiNamespace, err)
	}
	return serviceRaw.ToIDispatch(), nil
}

func queryCaptions(service *ole.IDispatch) ([]string, error) {
	resultRaw, err := oleutil.CallMethod(service, "ExecQuery", captionQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute caption query: %w", err)
	}
	result := resultRaw.ToIDispatch()
	defer result.Release()

	var captions []string
	err = oleutil.ForEach(result, func(v *ole.VARIANT) error {
		defer v.Clear()

		item := v.ToIDispatch()
		prop, err := oleutil.GetProperty(item, "Caption")
		if err != nil {
			return err
		}
		defer prop.Clear()

		if caption, ok := prop.Value().(string); ok {
			captions = append(captions, strings.TrimSpace(caption))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read captions: %w", err)
	}

	return captions, nil
}
