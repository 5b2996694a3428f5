package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_FIFOAndImmediateAck(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	require.NoError(t, m.Declare(ctx, "q"))

	for _, body := range []string{"a", "b", "c"} {
		require.NoError(t, m.Publish(ctx, "q", []byte(body)))
	}
	assert.Equal(t, 3, m.Len("q"))

	for _, want := range []string{"a", "b", "c"} {
		got, ok, err := m.Get(ctx, "q")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, string(got))
	}

	// Messages are gone once delivered.
	_, ok, err := m.Get(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len("q"))
}

func TestMemory_PublishCopiesBody(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	body := []byte("x")
	require.NoError(t, m.Publish(ctx, "q", body))
	body[0] = 'y'
	got, _, _ := m.Get(ctx, "q")
	assert.Equal(t, "x", string(got))
}

func TestMemory_Capacity(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(1)
	require.NoError(t, m.Publish(ctx, "q", []byte("1")))
	err := m.Publish(ctx, "q", []byte("2"))
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestMemory_Closed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(0)
	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Publish(ctx, "q", nil), ErrClosed)
	_, _, err := m.Get(ctx, "q")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Declare(ctx, "q"), ErrClosed)
}

func TestMemory_ConcurrentConsumersEachMessageOnce(t *testing.T) {
	// GIVEN 500 messages and 4 racing consumers
	ctx := context.Background()
	m := NewMemory(0)
	const n = 500
	for i := 0; i < n; i++ {
		require.NoError(t, m.Publish(ctx, "q", []byte{byte(i % 256)}))
	}

	// WHEN they drain the queue concurrently
	var mu sync.Mutex
	total := 0
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, ok, err := m.Get(ctx, "q")
				if err != nil || !ok {
					return
				}
				mu.Lock()
				total++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// THEN every message was delivered exactly once in total
	assert.Equal(t, n, total)
}

func TestQueues_WithDefaults(t *testing.T) {
	q := Queues{Scenario: "custom"}.WithDefaults()
	assert.Equal(t, Queues{Model: DefaultModelQueue, Scenario: "custom", Result: DefaultResultQueue}, q)
}

func TestConnConfig_URI(t *testing.T) {
	cfg := ConnConfig{Host: "rabbit", Port: 5673, VHost: "sim", Username: "u", Password: "p"}
	parsed, err := amqp.ParseURI(cfg.URI())
	require.NoError(t, err)
	assert.Equal(t, "rabbit", parsed.Host)
	assert.Equal(t, 5673, parsed.Port)
	assert.Equal(t, "sim", parsed.Vhost)
	assert.Equal(t, "u", parsed.Username)
	assert.Equal(t, "p", parsed.Password)
}

type failingBroker struct {
	Memory
	err error
}

func (f *failingBroker) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, f.err
}

func TestPoller_ClassifiesTimeoutAsConnectionFailure(t *testing.T) {
	p := NewPoller(&failingBroker{err: context.DeadlineExceeded}, PollConfig{OpTimeout: time.Millisecond})
	_, _, err := p.Get(context.Background(), "q")
	assert.ErrorIs(t, err, ErrConnection)
}

func TestPoller_CallerCancellationIsNotConnectionFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPoller(NewMemory(0), PollConfig{})
	_, _, err := p.Get(ctx, "q")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrConnection))
}

func TestPoller_IdleIsBoundedAndCancelable(t *testing.T) {
	p := NewPoller(NewMemory(0), PollConfig{InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond})

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Idle(context.Background()))
	}
	// Ten waits capped at 5ms each stay well under a second.
	assert.Less(t, time.Since(start), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Idle(ctx), context.Canceled)
}

func TestPollConfig_WithDefaults(t *testing.T) {
	got := PollConfig{InitialInterval: 2 * time.Second, MaxInterval: time.Second}.WithDefaults()
	assert.Equal(t, 2*time.Second, got.MaxInterval)
	assert.Equal(t, DefaultPollConfig().OpTimeout, got.OpTimeout)
}
