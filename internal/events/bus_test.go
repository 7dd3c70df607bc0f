package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"comport-service/internal/model"
)

func testEvent(t model.EventType, number int) model.PortEvent {
	port, _ := model.NewPort(model.DefaultNaming(), number, "\\Device\\Serial0")
	return model.NewPortEvent(t, port, "test", nil)
}

func receive(t *testing.T, sub *Subscription) model.PortEvent {
	t.Helper()
	select {
	case event, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return model.PortEvent{}
	}
}

func TestBus_DistributesByType(t *testing.T) {
	bus := NewBus(10, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bus.Run(ctx)

	all := bus.Subscribe()
	removed := bus.Subscribe(model.EventPortRemoved)

	bus.Publish(testEvent(model.EventPortAdded, 3))
	bus.Publish(testEvent(model.EventPortRemoved, 3))

	assert.Equal(t, model.EventPortAdded, receive(t, all).EventType)
	assert.Equal(t, model.EventPortRemoved, receive(t, all).EventType)

	event := receive(t, removed)
	assert.Equal(t, model.EventPortRemoved, event.EventType)
	assert.Equal(t, "COM3", event.Port.Name)
	assert.Equal(t, uint64(2), bus.Published())
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := NewBus(1, zap.NewNop())

	bus.Publish(testEvent(model.EventPortAdded, 1))
	bus.Publish(testEvent(model.EventPortAdded, 2))

	assert.Equal(t, uint64(1), bus.Published())
	assert.Equal(t, uint64(1), bus.Dropped())
}

func TestBus_RunClosesSubscriptions(t *testing.T) {
	bus := NewBus(10, zap.NewNop())
	sub := bus.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		bus.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	_, ok := <-sub.C
	assert.False(t, ok)

	// unsubscribing after shutdown is harmless
	bus.Unsubscribe(sub)
}

type recordingConn struct {
	mu       sync.Mutex
	subjects []string
	closed   bool
	err      error
}

func (c *recordingConn) Publish(subject string, _ []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = append(c.subjects, subject)
	return c.err
}

func (c *recordingConn) FlushTimeout(time.Duration) error { return nil }

func (c *recordingConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func TestNATSPublisher_Run(t *testing.T) {
	bus := NewBus(10, zap.NewNop())
	conn := &recordingConn{err: errors.New("slow consumer")}
	publisher := newNATSPublisher(conn, "comport.events", zap.NewNop())

	sub := bus.Subscribe()
	done := make(chan struct{})
	go func() {
		publisher.Run(context.Background(), sub)
		close(done)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go bus.Run(ctx)

	bus.Publish(testEvent(model.EventPortOwnerChanged, 9))
	require.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return len(conn.subjects) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	publisher.Close()

	assert.Equal(t, []string{"comport.events.port_owner_changed"}, conn.subjects)
	assert.True(t, conn.closed)
}
