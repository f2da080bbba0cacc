package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/example/dlqwatch/internal/models"
)

// EventListener receives lifecycle events. Implementations must tolerate
// being called from the orchestration goroutine; anything slow belongs
// behind their own buffering.
type EventListener interface {
	HandleEvent(ctx context.Context, event models.Event) error
}

// ListenerFunc adapts a function to the EventListener interface.
type ListenerFunc func(ctx context.Context, event models.Event) error

// HandleEvent implements EventListener.
func (f ListenerFunc) HandleEvent(ctx context.Context, event models.Event) error {
	return f(ctx, event)
}

// Emitter fans lifecycle events out to registered listeners. Delivery is
// fire-and-forget: a listener error is logged and the remaining listeners
// still run. Publish never returns an error, so notification can never
// stall orchestration.
type Emitter struct {
	logger *zap.Logger

	mu        sync.RWMutex
	listeners []namedListener
}

type namedListener struct {
	name     string
	listener EventListener
}

// NewEmitter creates an emitter with no listeners.
func NewEmitter(logger *zap.Logger) *Emitter {
	return &Emitter{logger: logger}
}

// Subscribe registers a listener under a name used in failure logs.
func (e *Emitter) Subscribe(name string, listener EventListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, namedListener{name: name, listener: listener})
}

// Publish delivers one event to every listener.
func (e *Emitter) Publish(ctx context.Context, event models.Event) {
	e.mu.RLock()
	listeners := make([]namedListener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.RUnlock()

	for _, nl := range listeners {
		if err := nl.listener.HandleEvent(ctx, event); err != nil {
			e.logger.Warn("event listener failed",
				zap.String("listener", nl.name),
				zap.String("kind", string(event.Kind)),
				zap.String("queue", event.QueueName),
				zap.Error(err))
		}
	}
}
