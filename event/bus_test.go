package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_EmitDeliversToSubscribers(t *testing.T) {
	bus := NewMemoryBus(nil)

	var got []any
	bus.On("topic.a", func(payload any) {
		got = append(got, payload)
	})

	bus.Emit("topic.a", 1)
	bus.Emit("topic.a", 2)
	bus.Emit("topic.b", 3) // different topic, not delivered

	assert.Equal(t, []any{1, 2}, got)
}

func TestMemoryBus_EmitIsSynchronous(t *testing.T) {
	bus := NewMemoryBus(nil)

	done := false
	bus.On("sync", func(any) { done = true })

	bus.Emit("sync", nil)
	// The observer must have completed before Emit returned.
	assert.True(t, done)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryBus(nil)

	calls := 0
	unsubscribe := bus.On("topic", func(any) { calls++ })

	bus.Emit("topic", nil)
	unsubscribe()
	bus.Emit("topic", nil)
	unsubscribe() // second call is harmless

	assert.Equal(t, 1, calls)
}

func TestMemoryBus_NilHandler(t *testing.T) {
	bus := NewMemoryBus(nil)
	unsubscribe := bus.On("topic", nil)
	require.NotNil(t, unsubscribe)
	unsubscribe()

	// Emitting to a topic with no handlers is a no-op.
	bus.Emit("topic", nil)
}

func TestMemoryBus_PanickingHandlerDoesNotStopOthers(t *testing.T) {
	bus := NewMemoryBus(nil)

	delivered := 0
	bus.On("topic", func(any) { panic("boom") })
	bus.On("topic", func(any) { delivered++ })

	require.NotPanics(t, func() {
		bus.Emit("topic", nil)
	})
	assert.Equal(t, 1, delivered)
}

func TestMemoryBus_ConcurrentSubscribeEmit(t *testing.T) {
	bus := NewMemoryBus(nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsubscribe := bus.On("topic", func(any) {})
			unsubscribe()
		}()
		go func() {
			defer wg.Done()
			bus.Emit("topic", nil)
		}()
	}
	wg.Wait()
}
