package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/supportdesk/server/internal/worker"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher decouples ticket mutations from their side effects.
// Publish returns before any handler runs; handlers execute on the
// worker pool, so the request that triggered the event never waits on
// fan-out.
type Dispatcher interface {
	Publish(event Event)
	Subscribe(eventType EventType, handler EventHandler)
}

type asyncDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	pool      *worker.Pool
	logger    *zap.Logger
}

// NewAsyncDispatcher creates a dispatcher backed by the given pool.
func NewAsyncDispatcher(pool *worker.Pool, logger *zap.Logger) Dispatcher {
	return &asyncDispatcher{
		listeners: make(map[EventType][]EventHandler),
		pool:      pool,
		logger:    logger,
	}
}

// Publish schedules handlers for the event and returns immediately.
// Each handler runs as its own job: one failing or hung handler cannot
// starve the others.
func (d *asyncDispatcher) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	for _, handler := range handlers {
		handler := handler
		if !d.pool.Submit(func(ctx context.Context) error {
			return handler(ctx, event)
		}) {
			d.logger.Warn("event handler dropped",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.Ticket.ID))
		}
	}
}

// Subscribe registers a handler for the given event type.
func (d *asyncDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}
