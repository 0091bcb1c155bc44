package notify

import (
	"context"
	"sync"
)

// Subscriber receives values published on a Broadcaster.
type Subscriber[T any] struct {
	ch   chan T
	once sync.Once
}

// C returns the receive channel. It is closed when the subscriber is
// unsubscribed or the broadcaster shuts down.
func (s *Subscriber[T]) C() <-chan T {
	return s.ch
}

func (s *Subscriber[T]) close() {
	s.once.Do(func() { close(s.ch) })
}

// Broadcaster fans values out to any number of subscribers without ever
// blocking the publisher: a subscriber whose buffer is full misses the value.
// Consumers that need every update should treat a received value as "state
// changed, re-read it" rather than as a delta, which makes drops harmless.
type Broadcaster[T any] struct {
	mu     sync.RWMutex
	subs   map[*Subscriber[T]]struct{}
	buffer int
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a Broadcaster whose subscribers buffer up to the given number
// of undelivered values. A minimum of 1 is enforced so sends stay
// non-blocking.
func New[T any](buffer int) *Broadcaster[T] {
	return &Broadcaster[T]{
		subs:   make(map[*Subscriber[T]]struct{}),
		buffer: max(buffer, 1),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a new subscriber. Cancelling the context unsubscribes
// it and closes its channel. Subscribing to a closed broadcaster returns an
// already-closed subscriber.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) *Subscriber[T] {
	sub := &Subscriber[T]{ch: make(chan T, b.buffer)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		return sub
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	if ctx.Done() != nil {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			select {
			case <-ctx.Done():
				b.Unsubscribe(sub)
			case <-b.done:
			}
		}()
	}

	return sub
}

// Publish delivers the value to every subscriber with buffer room. It never
// blocks and is a no-op after Close.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for sub := range b.subs {
		select {
		case sub.ch <- v:
		default:
		}
	}
}

// Unsubscribe removes the subscriber and closes its channel. Safe to call
// multiple times and after Close.
func (b *Broadcaster[T]) Unsubscribe(sub *Subscriber[T]) {
	b.mu.Lock()
	delete(b.subs, sub)
	b.mu.Unlock()
	sub.close()
}

// Close shuts down the broadcaster and closes all subscriber channels.
// Idempotent.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.done)
	subs := make([]*Subscriber[T], 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	clear(b.subs)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	b.wg.Wait()
}
