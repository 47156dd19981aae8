// Package eventbus delivers the ordered progress events of one research run
// from its single producer to its single subscriber.
package eventbus

import (
	"context"
	"errors"
	"sync"

	"WebResearcher/internal/domain"
)

// ErrAlreadySubscribed is returned by a second Subscribe call.
var ErrAlreadySubscribed = errors.New("eventbus: already subscribed")

// Bus is a closeable, ordered event channel for one request. Publish never
// blocks: events are queued and drained by the subscription pump. The first
// terminal event closes the bus and every later Publish is dropped.
type Bus struct {
	mu         sync.Mutex
	queue      []domain.Event
	closed     bool
	subscribed bool
	terminal   domain.Event
	published  int

	wake      chan struct{}
	aborted   chan struct{}
	abortOnce sync.Once
}

// New returns an open bus.
func New() *Bus {
	return &Bus{
		wake:    make(chan struct{}, 1),
		aborted: make(chan struct{}),
	}
}

// Publish enqueues e and reports whether it was accepted.
func (b *Bus) Publish(e domain.Event) bool {
	if e == nil {
		return false
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	b.queue = append(b.queue, e)
	b.published++
	if e.Terminal() {
		b.closed = true
		b.terminal = e
	}
	b.mu.Unlock()

	b.signal()
	return true
}

// Close stops accepting events. Queued events are still delivered. Calling
// Close more than once is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.signal()
}

// Abort closes the bus and drops every event not yet delivered.
func (b *Bus) Abort() {
	b.mu.Lock()
	b.closed = true
	b.queue = nil
	b.mu.Unlock()
	b.abortOnce.Do(func() { close(b.aborted) })
}

// Closed reports whether the bus stopped accepting events.
func (b *Bus) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Aborted reports whether Abort was called.
func (b *Bus) Aborted() bool {
	select {
	case <-b.aborted:
		return true
	default:
		return false
	}
}

// Terminal returns the terminal event that closed the bus, if any.
func (b *Bus) Terminal() (domain.Event, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.terminal, b.terminal != nil
}

// Published returns how many events were accepted.
func (b *Bus) Published() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published
}

// Subscribe returns the receive side of the bus. The channel is closed after
// the last queued event of a closed bus was delivered, after Abort, or when
// ctx is done. Only one subscription is allowed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan domain.Event, error) {
	b.mu.Lock()
	if b.subscribed {
		b.mu.Unlock()
		return nil, ErrAlreadySubscribed
	}
	b.subscribed = true
	b.mu.Unlock()

	out := make(chan domain.Event)
	go b.pump(ctx, out)
	return out, nil
}

func (b *Bus) pump(ctx context.Context, out chan<- domain.Event) {
	defer close(out)

	for {
		b.mu.Lock()
		batch := b.queue
		b.queue = nil
		closed := b.closed
		b.mu.Unlock()

		for _, e := range batch {
			if b.Aborted() {
				return
			}
			select {
			case out <- e:
			case <-b.aborted:
				return
			case <-ctx.Done():
				return
			}
		}

		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}

		select {
		case <-b.wake:
		case <-b.aborted:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (b *Bus) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}
