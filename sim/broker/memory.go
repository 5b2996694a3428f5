package broker

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Broker with one FIFO per queue name.
// Publish to an undeclared queue creates it.
type Memory struct {
	mu       sync.Mutex
	queues   map[string][][]byte
	capacity int
	closed   bool
}

// NewMemory creates a Memory broker. capacity bounds each queue; zero or
// negative means unbounded.
func NewMemory(capacity int) *Memory {
	return &Memory{
		queues:   make(map[string][][]byte),
		capacity: capacity,
	}
}

func (m *Memory) Declare(ctx context.Context, queue string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.queues[queue]; !ok {
		m.queues[queue] = nil
	}
	return nil
}

func (m *Memory) Publish(ctx context.Context, queue string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	q := m.queues[queue]
	if m.capacity > 0 && len(q) >= m.capacity {
		return fmt.Errorf("publish to %s: %w", queue, ErrQueueFull)
	}
	msg := make([]byte, len(body))
	copy(msg, body)
	m.queues[queue] = append(q, msg)
	return nil
}

func (m *Memory) Get(ctx context.Context, queue string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	q := m.queues[queue]
	if len(q) == 0 {
		return nil, false, nil
	}
	msg := q[0]
	q[0] = nil
	m.queues[queue] = q[1:]
	return msg, true, nil
}

// Len reports the number of messages waiting on queue.
func (m *Memory) Len(queue string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queues[queue])
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

var _ Broker = (*Memory)(nil)
