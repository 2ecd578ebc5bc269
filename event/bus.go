// Package event provides the in-process publish/subscribe bus the plugin
// runtime uses for lifecycle notifications and plugin-scoped events.
package event

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler handles a published payload.
type Handler func(payload any)

// Bus is the narrow publish/subscribe contract consumed by the runtime.
// Emit is fire-and-forget from the caller's point of view, but observers run
// to completion before the call returns.
type Bus interface {
	Emit(topic string, payload any)
	On(topic string, handler Handler) (unsubscribe func())
}

// MemoryBus is a thread-safe in-memory Bus.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string]map[string]Handler
	logger   *zap.Logger
}

// Compile-time interface compliance check.
var _ Bus = (*MemoryBus)(nil)

// NewMemoryBus creates a MemoryBus. A nil logger is replaced with a no-op.
func NewMemoryBus(logger *zap.Logger) *MemoryBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryBus{
		handlers: make(map[string]map[string]Handler),
		logger:   logger.With(zap.String("component", "event_bus")),
	}
}

// Emit publishes payload to every handler subscribed to topic. Handlers run
// synchronously in the caller's goroutine; panics are recovered and logged so
// one observer cannot take down the publisher.
func (b *MemoryBus) Emit(topic string, payload any) {
	b.mu.RLock()
	src := b.handlers[topic]
	handlers := make([]Handler, 0, len(src))
	for _, h := range src {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.dispatch(topic, handler, payload)
	}
}

func (b *MemoryBus) dispatch(topic string, handler Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", topic),
				zap.Any("recover", r))
		}
	}()
	handler(payload)
}

// On subscribes handler to topic and returns a function that removes the
// subscription. Unsubscribing twice is harmless.
func (b *MemoryBus) On(topic string, handler Handler) func() {
	if handler == nil {
		return func() {}
	}

	id := uuid.NewString()

	b.mu.Lock()
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[string]Handler)
	}
	b.handlers[topic][id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if handlers, ok := b.handlers[topic]; ok {
			delete(handlers, id)
			if len(handlers) == 0 {
				delete(b.handlers, topic)
			}
		}
	}
}
