package engine

import "sync"

// feed is a push stream with a retained latest value. Slow subscribers
// drop intermediate values rather than blocking the publisher.
type feed[T any] struct {
	mu     sync.Mutex
	latest T
	seeded bool
	subs   map[int]chan T
	nextID int
}

func newFeed[T any]() *feed[T] {
	return &feed[T]{subs: make(map[int]chan T)}
}

func (f *feed[T]) Publish(value T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = value
	f.seeded = true
	for _, ch := range f.subs {
		select {
		case ch <- value:
		default:
			// drain the stale value and replace it with the fresh one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- value:
			default:
			}
		}
	}
}

func (f *feed[T]) Latest() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.seeded
}

// Subscribe returns a channel of subsequent values, seeded with the
// latest one when present. The cancel func releases the subscription.
func (f *feed[T]) Subscribe() (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	ch := make(chan T, 1)
	if f.seeded {
		ch <- f.latest
	}
	f.subs[id] = ch
	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}
