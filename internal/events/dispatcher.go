package events

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// ErrDispatcherClosed is returned by Publish after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// AsyncDispatcher queues events without bound and delivers them from a single
// goroutine, so handlers see events in publish order and Publish never waits
// on a handler.
type AsyncDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	logger    *zap.Logger

	qmu      sync.Mutex
	cond     *sync.Cond
	idle     *sync.Cond
	queue    []Event
	inflight int
	closed   bool
	done     chan struct{}
}

// NewAsyncDispatcher creates a dispatcher and starts its delivery goroutine.
// Call Close to drain and stop it.
func NewAsyncDispatcher(logger *zap.Logger) *AsyncDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &AsyncDispatcher{
		listeners: make(map[EventType][]EventHandler),
		logger:    logger,
		done:      make(chan struct{}),
	}
	d.cond = sync.NewCond(&d.qmu)
	d.idle = sync.NewCond(&d.qmu)
	go d.run()
	return d
}

// Publish enqueues the event. It returns ErrDispatcherClosed after Close.
func (d *AsyncDispatcher) Publish(_ context.Context, event Event) error {
	d.qmu.Lock()
	defer d.qmu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.inflight++
	d.queue = append(d.queue, event)
	d.cond.Signal()
	return nil
}

// Subscribe registers a handler for the given event type.
func (d *AsyncDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

// Flush blocks until every event published so far has been handled.
func (d *AsyncDispatcher) Flush() {
	d.qmu.Lock()
	defer d.qmu.Unlock()
	for d.inflight > 0 {
		d.idle.Wait()
	}
}

// Close stops accepting events, drains the queue and stops the worker.
func (d *AsyncDispatcher) Close() {
	d.qmu.Lock()
	if d.closed {
		d.qmu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	d.cond.Broadcast()
	d.qmu.Unlock()
	<-d.done
}

func (d *AsyncDispatcher) run() {
	defer close(d.done)
	for {
		d.qmu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 && d.closed {
			d.qmu.Unlock()
			return
		}
		event := d.queue[0]
		d.queue[0] = Event{}
		d.queue = d.queue[1:]
		d.qmu.Unlock()

		d.deliver(event)

		d.qmu.Lock()
		d.inflight--
		if d.inflight == 0 {
			d.idle.Broadcast()
		}
		d.qmu.Unlock()
	}
}

func (d *AsyncDispatcher) deliver(event Event) {
	d.mu.RLock()
	handlers := append([]EventHandler{}, d.listeners[event.Type]...)
	d.mu.RUnlock()

	ctx := context.Background()
	for _, handler := range handlers {
		if err := d.safeCall(ctx, handler, event); err != nil {
			d.logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.String("ticket_id", event.TicketID),
				zap.Error(err))
		}
	}
}

func (d *AsyncDispatcher) safeCall(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				zap.String("event_type", string(event.Type)),
				zap.Any("panic", r))
		}
	}()
	return handler(ctx, event)
}
