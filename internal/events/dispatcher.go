package events

import (
	"context"
	"log"
	"sync"
	"time"

	"go.uber.org/atomic"
)

type namedPublisher struct {
	name      string
	publisher Publisher
}

// Dispatcher queues events and delivers them, in emission order, to every
// registered publisher from a single goroutine. Emit drops the event when
// the buffer is full rather than stalling the caller; a dropped token event
// is a gap in that token's journal and is logged as one.
type Dispatcher struct {
	queue   chan Event
	timeout time.Duration
	dropped *atomic.Int64

	mu         sync.RWMutex
	publishers []namedPublisher
}

func NewDispatcher(bufferSize int) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Dispatcher{
		queue:   make(chan Event, bufferSize),
		timeout: 5 * time.Second,
		dropped: atomic.NewInt64(0),
	}
}

func (d *Dispatcher) Register(name string, publisher Publisher) {
	if publisher == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.publishers = append(d.publishers, namedPublisher{name: name, publisher: publisher})
}

func (d *Dispatcher) Publishers() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.publishers))
	for _, p := range d.publishers {
		names = append(names, p.name)
	}
	return names
}

func (d *Dispatcher) Emit(event Event) {
	select {
	case d.queue <- event:
	default:
		d.dropped.Inc()
		if event.TokenEvent() {
			log.Printf("journal gap token_id=%s type=%s event_id=%s reason=buffer_full", event.TokenID, event.Type, event.EventID)
			return
		}
		log.Printf("event dropped type=%s reason=buffer_full", event.Type)
	}
}

// Dropped counts events Emit discarded because the buffer was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Run delivers events until ctx is done, then flushes what is still queued.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case event := <-d.queue:
			d.deliver(context.Background(), event)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case event := <-d.queue:
			d.deliver(context.Background(), event)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(parent context.Context, event Event) {
	d.mu.RLock()
	publishers := append([]namedPublisher(nil), d.publishers...)
	d.mu.RUnlock()
	for _, p := range publishers {
		ctx, cancel := context.WithTimeout(parent, d.timeout)
		if err := p.publisher.Publish(ctx, event); err != nil {
			log.Printf("event publish failed publisher=%s type=%s err=%v", p.name, event.Type, err)
		}
		cancel()
	}
}
