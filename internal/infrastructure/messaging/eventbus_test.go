package messaging

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/sagenius/agency-crm/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	shared.BaseEvent
}

func (e testEvent) Payload() map[string]interface{} { return nil }

func newEvent(t shared.EventType) testEvent {
	return testEvent{BaseEvent: shared.NewBaseEvent(t, "demo", "s1")}
}

func TestInMemoryEventBus_SyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	var typed, all int32
	require.NoError(t, bus.Subscribe(shared.EventStatusChanged, func(shared.Event) error {
		atomic.AddInt32(&typed, 1)
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		atomic.AddInt32(&all, 1)
		return nil
	}))

	require.NoError(t, bus.Publish(newEvent(shared.EventStatusChanged)))
	require.NoError(t, bus.Publish(newEvent(shared.EventTaskCreated)))

	assert.Equal(t, int32(1), typed)
	assert.Equal(t, int32(2), all)
}

func TestInMemoryEventBus_HandlerErrorsAreSwallowed(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	defer bus.Close()

	var after int32
	_ = bus.Subscribe(shared.EventStatusChanged, func(shared.Event) error { return errors.New("boom") })
	_ = bus.Subscribe(shared.EventStatusChanged, func(shared.Event) error { panic("bad handler") })
	_ = bus.Subscribe(shared.EventStatusChanged, func(shared.Event) error {
		atomic.AddInt32(&after, 1)
		return nil
	})

	assert.NoError(t, bus.Publish(newEvent(shared.EventStatusChanged)))
	assert.Equal(t, int32(1), after)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(3), snap.TotalHandlerExecs)
	assert.Equal(t, int64(2), snap.HandlerFailures)
}

func TestInMemoryEventBus_Async(t *testing.T) {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = true
	bus := NewInMemoryEventBus(cfg)

	var n int32
	_ = bus.Subscribe(shared.EventTaskDueSoon, func(shared.Event) error {
		atomic.AddInt32(&n, 1)
		return nil
	})
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(newEvent(shared.EventTaskDueSoon)))
	}
	bus.Wait()

	assert.Equal(t, int32(5), n)
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(newEvent(shared.EventTaskDueSoon)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventTaskDueSoon, func(shared.Event) error { return nil }), ErrEventBusClosed)
}

func TestInMemoryEventBus_AsyncSingleWorkerKeepsOrder(t *testing.T) {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = true
	cfg.WorkerPoolSize = 1
	bus := NewInMemoryEventBus(cfg)
	defer bus.Close()

	var seen []shared.EventType
	_ = bus.SubscribeAll(func(e shared.Event) error {
		seen = append(seen, e.EventType())
		return nil
	})

	require.NoError(t, bus.Publish(newEvent(shared.EventStatusChanged)))
	require.NoError(t, bus.Publish(newEvent(shared.EventTaskCreated)))
	require.NoError(t, bus.Publish(newEvent(shared.EventTaskDueSoon)))
	bus.Wait()

	assert.Equal(t, []shared.EventType{shared.EventStatusChanged, shared.EventTaskCreated, shared.EventTaskDueSoon}, seen)
	assert.Equal(t, int64(3), bus.Metrics().Snapshot().TotalPublished)
}
