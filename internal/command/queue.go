package command

import (
	"context"
	"sync"

	"github.com/eapache/queue"
)

// Queue is an unbounded FIFO of commands with a single blocking consumer.
//
// Enqueue never blocks beyond the internal mutex. Dequeue blocks until a
// command is available, the context is cancelled, or the queue is closed.
//
// Thread Safety:
//   - Enqueue, Reset and Len may be called from any goroutine.
//   - Dequeue is intended for exactly one consumer goroutine.
type Queue struct {
	mu     sync.Mutex
	items  *queue.Queue
	ready  chan struct{}
	closed bool

	onDepth func(int)
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		items: queue.New(),
		ready: make(chan struct{}, 1),
	}
}

// SetDepthObserver registers a function called with the queue length after
// every change. Used to export queue depth as a metric.
func (q *Queue) SetDepthObserver(fn func(int)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDepth = fn
}

// Enqueue appends cmd. Commands enqueued after Close are discarded.
func (q *Queue) Enqueue(cmd Command) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items.Add(cmd)
	n := q.items.Length()
	observe := q.onDepth
	q.mu.Unlock()

	q.signal()
	if observe != nil {
		observe(n)
	}
}

// Dequeue removes and returns the oldest command, blocking until one is
// available.
//
// Returns:
//   - Command: The oldest queued command
//   - error: ctx.Err() if the context ends first, ErrQueueClosed once closed and empty
func (q *Queue) Dequeue(ctx context.Context) (Command, error) {
	for {
		q.mu.Lock()
		if q.items.Length() > 0 {
			cmd := q.items.Remove().(Command) //nolint:forcetypeassert // only Commands are added
			n := q.items.Length()
			observe := q.onDepth
			q.mu.Unlock()
			if n > 0 {
				q.signal()
			}
			if observe != nil {
				observe(n)
			}
			return cmd, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return Command{}, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return Command{}, ctx.Err()
		case <-q.ready:
		}
	}
}

// Reset discards every queued command and replaces them with cmds under a
// single lock, so nothing enqueued concurrently can land ahead of cmds.
// cmds are queued even after Close.
//
// Returns:
//   - int: The number of commands discarded
func (q *Queue) Reset(cmds ...Command) int {
	q.mu.Lock()
	dropped := q.items.Length()
	q.items = queue.New()
	for _, c := range cmds {
		q.items.Add(c)
	}
	n := q.items.Length()
	observe := q.onDepth
	q.mu.Unlock()

	if n > 0 {
		q.signal()
	}
	if observe != nil {
		observe(n)
	}
	return dropped
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Close stops accepting commands and wakes the consumer. Commands already
// queued are still delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
