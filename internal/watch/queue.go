package watch

import (
	"sync"
	"time"
)

// Notification is a transient, user-facing message (a toast).
type Notification struct {
	Message string    `json:"message"`
	IsError bool      `json:"is_error"`
	At      time.Time `json:"at"`
}

// Queue buffers notifications until someone drains them. When full, the
// oldest message is dropped.
type Queue struct {
	mu    sync.Mutex
	items []Notification
	limit int
	ch    chan struct{}
}

func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = 16
	}
	return &Queue{limit: limit, ch: make(chan struct{}, 1)}
}

func (q *Queue) Info(msg string)  { q.post(msg, false) }
func (q *Queue) Error(msg string) { q.post(msg, true) }

func (q *Queue) post(msg string, isErr bool) {
	q.mu.Lock()
	if len(q.items) == q.limit {
		q.items = q.items[1:]
	}
	q.items = append(q.items, Notification{Message: msg, IsError: isErr, At: time.Now()})
	q.mu.Unlock()

	select {
	case q.ch <- struct{}{}:
	default:
	}
}

// Drain returns and clears every pending notification.
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	return out
}

// Ready is signalled whenever a notification is posted.
func (q *Queue) Ready() <-chan struct{} {
	return q.ch
}
