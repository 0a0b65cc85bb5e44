package broker

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dmitrijs2005/streamflow/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAMQP_ValidatesConfig(t *testing.T) {
	ctx := context.Background()

	b := NewAMQP(AMQPConfig{Exchange: "users"}, logging.Discard())
	assert.ErrorContains(t, b.Publish(ctx, Message{ID: "x"}), "url is required")

	b = NewAMQP(AMQPConfig{URL: "amqp://localhost"}, logging.Discard())
	assert.ErrorContains(t, b.Publish(ctx, Message{ID: "x"}), "exchange is required")

	b = NewAMQP(AMQPConfig{URL: "amqp://localhost", Exchange: "users"}, logging.Discard())
	assert.ErrorContains(t, b.Subscribe(ctx, nil), "queue is required")
}

func TestAMQP_DialRetriesThenGivesUp(t *testing.T) {
	b := NewAMQP(AMQPConfig{URL: "amqp://nowhere", Exchange: "users", MaxReconnect: 50 * time.Millisecond}, logging.Discard())
	dials := 0
	b.dial = func(string) (*amqp.Connection, error) {
		dials++
		return nil, errors.New("connection refused")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := b.Publish(ctx, Message{ID: "x"})
	require.Error(t, err)
	assert.GreaterOrEqual(t, dials, 1)
}

func TestAMQP_ClosedBrokerRefusesWork(t *testing.T) {
	b := NewAMQP(AMQPConfig{URL: "amqp://nowhere", Exchange: "users", Queue: "q"}, logging.Discard())
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Publish(context.Background(), Message{ID: "x"}), ErrClosed)
	assert.ErrorIs(t, b.Subscribe(context.Background(), func(context.Context, Message) error { return nil }), ErrClosed)
}

// countingBackOff hands out a fixed delay and counts resets.
type countingBackOff struct {
	mu     sync.Mutex
	delay  time.Duration
	next   int
	resets int
}

func (c *countingBackOff) NextBackOff() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	return c.delay
}

func (c *countingBackOff) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
}

func TestAMQP_SubscribePacesFailingSessions(t *testing.T) {
	b := NewAMQP(AMQPConfig{URL: "amqp://nowhere", Exchange: "users", Queue: "q"}, logging.Discard())
	bo := &countingBackOff{delay: 50 * time.Millisecond}
	b.resubscribe = func() backoff.BackOff { return bo }

	var mu sync.Mutex
	sessions := 0
	b.consumeOnce = func(context.Context, Handler) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		sessions++
		return false, errors.New("broker: declare queue: PRECONDITION_FAILED")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 220*time.Millisecond)
	defer cancel()
	require.NoError(t, b.Subscribe(ctx, func(context.Context, Message) error { return nil }))

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, sessions, 2)
	assert.LessOrEqual(t, sessions, 6)
	assert.Zero(t, bo.resets)
}

func TestAMQP_SubscribeResetsBackOffAfterDeliveries(t *testing.T) {
	b := NewAMQP(AMQPConfig{URL: "amqp://nowhere", Exchange: "users", Queue: "q"}, logging.Discard())
	bo := &countingBackOff{delay: time.Millisecond}
	b.resubscribe = func() backoff.BackOff { return bo }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := 0
	b.consumeOnce = func(context.Context, Handler) (bool, error) {
		sessions++
		switch sessions {
		case 1:
			return false, errors.New("channel closed")
		case 2:
			return true, errors.New("delivery channel closed")
		case 3:
			return false, ErrClosed
		}
		return false, nil
	}

	err := b.Subscribe(ctx, func(context.Context, Message) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, 3, sessions)
	assert.Equal(t, 1, bo.resets)
	assert.Equal(t, 2, bo.next)
}

// Runs against a real broker when STREAMFLOW_TEST_AMQP_URL is set.
func TestAMQP_RoundTrip(t *testing.T) {
	url := os.Getenv("STREAMFLOW_TEST_AMQP_URL")
	if url == "" {
		t.Skip("STREAMFLOW_TEST_AMQP_URL not set")
	}

	cfg := AMQPConfig{URL: url, Exchange: "streamflow-test", Queue: "streamflow-test-" + time.Now().Format("150405.000")}
	sub := NewAMQP(cfg, logging.Discard())
	pub := NewAMQP(cfg, logging.Discard())
	t.Cleanup(func() {
		_ = sub.Close()
		_ = pub.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	got := make(chan Message, 1)
	go func() {
		_ = sub.Subscribe(ctx, func(_ context.Context, m Message) error {
			select {
			case got <- m:
			default:
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		return pub.Publish(ctx, Message{ID: "e-1", Kind: "created", Body: []byte(`{}`)}) == nil
	}, 5*time.Second, 200*time.Millisecond)

	select {
	case m := <-got:
		assert.Equal(t, "created", m.Kind)
	case <-ctx.Done():
		t.Fatal("no delivery")
	}
}
