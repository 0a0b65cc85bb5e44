package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dmitrijs2005/streamflow/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

const contentTypeJSON = "application/json"

// AMQPConfig describes the RabbitMQ topology: one durable fanout exchange
// and, for subscribers, one durable queue bound to it.
type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
	Prefetch int
	// MaxReconnect bounds how long a dial is retried. Zero retries until
	// the context is done.
	MaxReconnect time.Duration
}

func (c AMQPConfig) validate(needQueue bool) error {
	if c.URL == "" {
		return errors.New("broker: amqp url is required")
	}
	if c.Exchange == "" {
		return errors.New("broker: exchange is required")
	}
	if needQueue && c.Queue == "" {
		return errors.New("broker: queue is required")
	}
	return nil
}

// AMQP publishes to and consumes from RabbitMQ. Publishes wait for the
// broker's confirmation; consumers ack manually. Lost connections are
// redialled with exponential backoff.
type AMQP struct {
	cfg    AMQPConfig
	logger logging.Logger
	dial   func(url string) (*amqp.Connection, error)

	// consumeOnce runs one consumer session and reports whether it saw a
	// delivery. resubscribe paces the sessions.
	consumeOnce func(context.Context, Handler) (bool, error)
	resubscribe func() backoff.BackOff

	mu     sync.Mutex
	conn   *amqp.Connection
	pubCh  *amqp.Channel
	closed bool
}

func NewAMQP(cfg AMQPConfig, l logging.Logger) *AMQP {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 16
	}
	b := &AMQP{
		cfg:    cfg,
		logger: l.With("module", "amqp_broker", "exchange", cfg.Exchange),
		dial:   amqp.Dial,
		resubscribe: func() backoff.BackOff {
			eb := backoff.NewExponentialBackOff()
			eb.MaxInterval = 30 * time.Second
			return eb
		},
	}
	if cfg.MaxReconnect > 0 {
		b.dial = func(url string) (*amqp.Connection, error) {
			return amqp.DialConfig(url, amqp.Config{
				Heartbeat: 10 * time.Second,
				Locale:    "en_US",
				Dial:      amqp.DefaultDial(cfg.MaxReconnect),
			})
		}
	}
	b.consumeOnce = b.consume
	return b
}

func (b *AMQP) retryOptions() []backoff.RetryOption {
	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithNotify(func(err error, next time.Duration) {
			b.logger.Warn(context.Background(), "amqp connection failed, retrying", "error", err, "retry_in", next)
		}),
	}
	if b.cfg.MaxReconnect > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(b.cfg.MaxReconnect))
	} else {
		opts = append(opts, backoff.WithMaxElapsedTime(0))
	}
	return opts
}

// connection returns the live connection, dialling when there is none.
// Callers hold b.mu.
func (b *AMQP) connection(ctx context.Context) (*amqp.Connection, error) {
	if b.closed {
		return nil, ErrClosed
	}
	if b.conn != nil && !b.conn.IsClosed() {
		return b.conn, nil
	}

	conn, err := backoff.Retry(ctx, func() (*amqp.Connection, error) {
		return b.dial(b.cfg.URL)
	}, b.retryOptions()...)
	if err != nil {
		return nil, fmt.Errorf("broker: dial: %w", err)
	}
	b.conn = conn
	b.pubCh = nil
	b.logger.Info(ctx, "amqp connected")
	return conn, nil
}

func (b *AMQP) declareExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(b.cfg.Exchange, amqp.ExchangeFanout, true, false, false, false, nil)
}

func (b *AMQP) publishChannel(ctx context.Context) (*amqp.Channel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := b.connection(ctx)
	if err != nil {
		return nil, err
	}
	if b.pubCh != nil && !b.pubCh.IsClosed() {
		return b.pubCh, nil
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("broker: open channel: %w", err)
	}
	if err := b.declareExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("broker: declare exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("broker: enable confirms: %w", err)
	}
	b.pubCh = ch
	return ch, nil
}

// Publish sends m as a persistent message and waits until the broker
// confirms it.
func (b *AMQP) Publish(ctx context.Context, m Message) error {
	if err := b.cfg.validate(false); err != nil {
		return err
	}

	ch, err := b.publishChannel(ctx)
	if err != nil {
		return err
	}

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, b.cfg.Exchange, "", false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    m.ID,
		Type:         m.Kind,
		Timestamp:    time.Now().UTC(),
		Body:         m.Body,
	})
	if err != nil {
		return fmt.Errorf("broker: publish: %w", err)
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("broker: await confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker: message %s was not confirmed", m.ID)
	}
	return nil
}

// Subscribe consumes the configured queue until ctx is done. Interrupted
// sessions are restarted after a backoff, which resets once a session has
// received a delivery.
func (b *AMQP) Subscribe(ctx context.Context, h Handler) error {
	if err := b.cfg.validate(true); err != nil {
		return err
	}

	bo := b.resubscribe()
	for {
		received, err := b.consumeOnce(ctx, h)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrClosed) {
			return err
		}
		if received {
			bo.Reset()
		}

		wait := bo.NextBackOff()
		b.logger.Warn(ctx, "amqp consumer interrupted, reconnecting", "error", err, "retry_in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (b *AMQP) consume(ctx context.Context, h Handler) (bool, error) {
	b.mu.Lock()
	conn, err := b.connection(ctx)
	b.mu.Unlock()
	if err != nil {
		return false, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return false, fmt.Errorf("broker: open channel: %w", err)
	}
	defer ch.Close()

	if err := b.declareExchange(ch); err != nil {
		return false, fmt.Errorf("broker: declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(b.cfg.Queue, true, false, false, false, nil); err != nil {
		return false, fmt.Errorf("broker: declare queue: %w", err)
	}
	if err := ch.QueueBind(b.cfg.Queue, "", b.cfg.Exchange, false, nil); err != nil {
		return false, fmt.Errorf("broker: bind queue: %w", err)
	}
	if err := ch.Qos(b.cfg.Prefetch, 0, false); err != nil {
		return false, fmt.Errorf("broker: qos: %w", err)
	}

	consumerTag := "streamflow-" + b.cfg.Queue
	deliveries, err := ch.Consume(b.cfg.Queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return false, fmt.Errorf("broker: consume: %w", err)
	}
	b.logger.Info(ctx, "amqp consumer started", "queue", b.cfg.Queue)

	received := false
	for {
		select {
		case <-ctx.Done():
			// Unacked prefetched messages are returned to the queue when
			// the channel closes.
			_ = ch.Cancel(consumerTag, false)
			return received, nil
		case d, ok := <-deliveries:
			if !ok {
				return received, errors.New("broker: delivery channel closed")
			}
			received = true
			b.handle(ctx, h, d)
		}
	}
}

func (b *AMQP) handle(ctx context.Context, h Handler, d amqp.Delivery) {
	err := h(ctx, Message{ID: d.MessageId, Kind: d.Type, Body: d.Body})

	var ackErr error
	switch {
	case err == nil:
		ackErr = d.Ack(false)
	case errors.Is(err, ErrMalformed):
		b.logger.Error(ctx, "dropping malformed message", "message_id", d.MessageId, "error", err)
		ackErr = d.Reject(false)
	default:
		b.logger.Warn(ctx, "message handling failed, requeueing", "message_id", d.MessageId, "error", err)
		ackErr = d.Nack(false, true)
	}
	if ackErr != nil {
		b.logger.Error(ctx, "amqp acknowledgement failed", "message_id", d.MessageId, "error", ackErr)
	}
}

func (b *AMQP) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if b.conn == nil || b.conn.IsClosed() {
		return nil
	}
	return b.conn.Close()
}
