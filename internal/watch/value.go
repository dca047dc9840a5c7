// Package watch holds observable state for controllers: a latest-value
// broadcaster and a fire-and-clear notification queue.
package watch

import "sync"

// Value holds the current state of a controller and fans every change out to
// subscribers. Slow subscribers only ever see the newest value.
type Value[T any] struct {
	mu     sync.Mutex
	cur    T
	subs   map[int]chan T
	nextID int
	closed bool
}

func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{cur: initial, subs: make(map[int]chan T)}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur
}

// Set stores x and publishes it to every subscriber.
func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.cur = x
	for _, ch := range v.subs {
		offer(ch, x)
	}
}

// Subscribe returns a channel that immediately receives the current value and
// then every later one, plus a func that stops the subscription.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan T, 1)
	if v.closed {
		close(ch)
		return ch, func() {}
	}
	id := v.nextID
	v.nextID++
	v.subs[id] = ch
	ch <- v.cur

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			if c, ok := v.subs[id]; ok {
				delete(v.subs, id)
				close(c)
			}
		})
	}
}

// Close ends every subscription. Later Sets are ignored.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	for id, ch := range v.subs {
		delete(v.subs, id)
		close(ch)
	}
}

// offer replaces any unread value in ch with x. Callers hold v.mu, so no
// other sender races on ch.
func offer[T any](ch chan T, x T) {
	select {
	case ch <- x:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- x:
	default:
	}
}
