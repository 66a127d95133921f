// Package live provides the latest-value broadcast primitive used for
// observable engine state.
//
// A Feed pushes every published value to all current subscribers and
// replays the most recent value to late subscribers on subscription.
// Subscribers that fall behind see the latest value, not the full
// history: a slow consumer never blocks the publisher.
package live

import "sync"

// Feed broadcasts the latest value of type T to any number of subscribers.
//
// The zero value is not usable; create feeds with NewFeed.
type Feed[T any] struct {
	mu       sync.Mutex
	subs     map[int]chan T
	nextID   int
	current  T
	hasValue bool
}

// NewFeed creates an empty feed. Subscribers added before the first
// Publish receive nothing until a value is published.
func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[int]chan T)}
}

// Publish stores v as the feed's current value and delivers it to all
// subscribers. Delivery is non-blocking: if a subscriber has not consumed
// the previous value, it is replaced by v.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.current = v
	f.hasValue = true

	for _, ch := range f.subs {
		deliver(ch, v)
	}
}

// Subscribe registers a new subscriber and returns its channel along with
// a cancel function. If the feed already has a value it is replayed
// immediately. The channel is closed when cancel is called.
func (f *Feed[T]) Subscribe() (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++

	ch := make(chan T, 1)
	f.subs[id] = ch

	if f.hasValue {
		ch <- f.current
	}

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Latest returns the feed's current value, if one has been published.
func (f *Feed[T]) Latest() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.hasValue
}

// SubscriberCount returns the number of active subscribers.
func (f *Feed[T]) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// deliver replaces any unconsumed value in ch with v.
func deliver[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
		// Drop the stale value, then enqueue the fresh one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
