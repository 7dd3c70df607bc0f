package worker

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"comport-service/internal/handles"
)

func fakeResolver(req handles.Request) handles.Response {
	switch {
	case req.PID == 1:
		return handles.StatusResponse(handles.StatusSameProcess)
	case req.Handle == 4:
		return handles.NameResponse(`\Device\Serial0`)
	default:
		return handles.StatusResponse(handles.StatusInvalidType)
	}
}

func TestServe_AnswersUntilDisconnect(t *testing.T) {
	client, server := net.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- Serve(context.Background(), server, ResolverFunc(fakeResolver), zap.NewNop())
	}()

	ch := handles.NewStreamChannel(client)

	resp, err := ch.Exchange(context.Background(), handles.Request{PID: 100, Handle: 4})
	require.NoError(t, err)
	assert.Equal(t, `\Device\Serial0`, resp.Name())

	resp, err = ch.Exchange(context.Background(), handles.Request{PID: 1, Handle: 4})
	require.NoError(t, err)
	assert.Equal(t, handles.StatusSameProcess, resp.Status)

	resp, err = ch.Exchange(context.Background(), handles.Request{PID: 100, Handle: 8})
	require.NoError(t, err)
	assert.Equal(t, handles.StatusInvalidType, resp.Status)

	require.NoError(t, ch.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after disconnect")
	}
}

func TestServe_PartialRequest(t *testing.T) {
	client, server := net.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- Serve(context.Background(), server, ResolverFunc(fakeResolver), zap.NewNop())
	}()

	_, err := client.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestServe_Cancel(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, server, ResolverFunc(fakeResolver), zap.NewNop())
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
