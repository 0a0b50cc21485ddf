package taskqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by Enqueue after Close, and by Dequeue once a
// closed queue has been drained.
var ErrClosed = errors.New("task queue closed")

// InMemoryQueue is a Queue backed by a buffered channel. Enqueue blocks
// while the queue is full. It is safe for concurrent use.
type InMemoryQueue struct {
	ch        chan Task
	done      chan struct{}
	closeOnce sync.Once
}

// NewInMemoryQueue creates a new queue with the given capacity.
func NewInMemoryQueue(capacity int) *InMemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &InMemoryQueue{
		ch:   make(chan Task, capacity),
		done: make(chan struct{}),
	}
}

// Ensure InMemoryQueue implements Queue.
var _ Queue = (*InMemoryQueue)(nil)

// Enqueue stamps t with an ID and enqueue time when they are unset.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}

	select {
	case q.ch <- t:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) (*Task, error) {
	select {
	case t := <-q.ch:
		return &t, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.done:
		// Hand out what is left before reporting closure.
		select {
		case t := <-q.ch:
			return &t, nil
		default:
			return nil, ErrClosed
		}
	}
}

func (q *InMemoryQueue) Len() int {
	return len(q.ch)
}

// Close stops accepting tasks. Queued tasks can still be dequeued.
func (q *InMemoryQueue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
