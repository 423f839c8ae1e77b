package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	BufferSize int
	DropIfFull bool
}

// Dispatcher forwards audit events to a sink from its own goroutine, so a slow sink never
// holds a guild lock. Every emitted event is either delivered or counted in Dropped.
type Dispatcher struct {
	cfg     Config
	sink    Sink
	queue   chan Event
	wg      sync.WaitGroup
	dropped atomic.Uint64

	// mu is held shared while an event is queued and exclusively while closing,
	// so nothing is sent on a closed queue.
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher forwarding to sink.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		cfg:   cfg,
		sink:  sink,
		queue: make(chan Event, cfg.BufferSize),
	}

	d.wg.Add(1)

	go d.deliver()

	return d
}

func (d *Dispatcher) deliver() {
	defer d.wg.Done()

	for event := range d.queue {
		d.sink.Emit(context.Background(), event)
	}
}

// Emit queues an event. With DropIfFull a full buffer drops the event, otherwise Emit waits
// for room or for ctx to end. Events emitted after Close are dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)

		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- event:
		default:
			d.dropped.Add(1)
		}

		return
	}

	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.dropped.Add(1)
	}
}

// Close stops accepting events and waits until queued events are delivered.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}

	d.mu.Lock()

	if !d.closed {
		d.closed = true
		close(d.queue)
	}

	d.mu.Unlock()

	d.wg.Wait()
}

// Dropped returns how many events were discarded.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}

	return d.dropped.Load()
}
