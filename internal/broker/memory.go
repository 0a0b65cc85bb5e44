package broker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Memory is an in-process fanout exchange. Every queue declared on it
// receives a copy of each message published after the declaration.
type Memory struct {
	mu            sync.Mutex
	queues        map[string]*MemoryQueue
	closed        bool
	redeliveryGap time.Duration
}

type MemoryOption func(*Memory)

// WithRedeliveryDelay sets the pause before a failed message is handed
// out again.
func WithRedeliveryDelay(d time.Duration) MemoryOption {
	return func(m *Memory) { m.redeliveryGap = d }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		queues:        make(map[string]*MemoryQueue),
		redeliveryGap: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Queue declares the named queue and binds it to the exchange. Declaring
// an existing name returns the same queue.
func (m *Memory) Queue(name string) *MemoryQueue {
	m.mu.Lock()
	defer m.mu.Unlock()

	if q, ok := m.queues[name]; ok {
		return q
	}
	q := &MemoryQueue{
		notify:        make(chan struct{}, 1),
		redeliveryGap: m.redeliveryGap,
	}
	m.queues[name] = q
	return q
}

func (m *Memory) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, q := range m.queues {
		q.push(msg)
	}
	return nil
}

// Close rejects further publishes. Queued messages stay consumable.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MemoryQueue is a FIFO queue bound to a Memory exchange.
type MemoryQueue struct {
	mu            sync.Mutex
	pending       []Message
	notify        chan struct{}
	redeliveryGap time.Duration

	acked    int
	rejected int
	requeued int
}

func (q *MemoryQueue) push(m Message) {
	body := make([]byte, len(m.Body))
	copy(body, m.Body)
	m.Body = body

	q.mu.Lock()
	q.pending = append(q.pending, m)
	q.mu.Unlock()
	q.signal()
}

func (q *MemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Message{}, false
	}
	m := q.pending[0]
	q.pending = q.pending[1:]
	return m, true
}

// Subscribe hands queued messages to h one at a time. A failed message
// goes back to the head of the queue after the redelivery delay.
func (q *MemoryQueue) Subscribe(ctx context.Context, h Handler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		m, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-q.notify:
				continue
			}
		}

		err := h(ctx, m)
		q.mu.Lock()
		switch {
		case err == nil:
			q.acked++
		case errors.Is(err, ErrMalformed):
			q.rejected++
		default:
			q.requeued++
			q.pending = append([]Message{m}, q.pending...)
		}
		q.mu.Unlock()

		if err != nil && !errors.Is(err, ErrMalformed) {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(q.redeliveryGap):
			}
		}
	}
}

// Len returns the number of messages waiting for delivery.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Stats returns how many deliveries were acknowledged, rejected as
// malformed and requeued.
func (q *MemoryQueue) Stats() (acked, rejected, requeued int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.acked, q.rejected, q.requeued
}
