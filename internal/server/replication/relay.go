// Package replication runs the background workers that keep identity
// replicas and the revocation ledger current: the outbox relay on the
// users service, and the replica applier and ledger pruner on the auth
// service.
package replication

import (
	"context"
	"database/sql"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dmitrijs2005/streamflow/internal/broker"
	"github.com/dmitrijs2005/streamflow/internal/dbx"
	"github.com/dmitrijs2005/streamflow/internal/logging"
	"github.com/dmitrijs2005/streamflow/internal/server/metrics"
	"github.com/dmitrijs2005/streamflow/internal/server/models"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/repomanager"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = time.Second
	defaultRetryBase    = time.Second
	defaultRetryMax     = 5 * time.Minute
	defaultPublishWait  = 10 * time.Second
)

// Relay publishes outbox events in sequence order. An event that fails to
// publish is rescheduled with exponential backoff and every later event
// waits behind it. Run a single relay per users database; SKIP LOCKED lets
// a second one overtake a leased head.
type Relay struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	publisher   broker.Publisher
	logger      logging.Logger
	metrics     metrics.Recorder

	batchSize int
	interval  time.Duration
	retryBase time.Duration
	retryMax  time.Duration
	// publishWait bounds one publish, so an unreachable broker ends in a
	// scheduled retry instead of an open transaction.
	publishWait time.Duration
	now         func() time.Time
}

type RelayOption func(*Relay)

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithPollInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithRetryBackoff sets the first retry delay and its cap.
func WithRetryBackoff(base, max time.Duration) RelayOption {
	return func(r *Relay) {
		r.retryBase = base
		r.retryMax = max
	}
}

func WithPublishTimeout(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.publishWait = d
		}
	}
}

func NewRelay(db *sql.DB, m repomanager.RepositoryManager, p broker.Publisher, l logging.Logger, rec metrics.Recorder, opts ...RelayOption) *Relay {
	r := &Relay{
		db:          db,
		repomanager: m,
		publisher:   p,
		logger:      l.With("module", "outbox_relay"),
		metrics:     rec,
		batchSize:   defaultBatchSize,
		interval:    defaultPollInterval,
		retryBase:   defaultRetryBase,
		retryMax:    defaultRetryMax,
		publishWait: defaultPublishWait,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce leases one batch of due events and publishes them. It returns
// the number of events published.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	published := 0

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := r.repomanager.Outbox(tx)
		now := r.now()

		events, err := repo.LeasePending(ctx, r.batchSize)
		if err != nil {
			return err
		}

		for _, ev := range events {
			if ev.NextAttemptAt.After(now) {
				return nil
			}
			if err := r.publish(ctx, ev); err != nil {
				next := now.Add(r.retryDelay(ev.AttemptCount + 1))
				r.logger.Warn(ctx, "outbox publish failed", "seq", ev.Seq, "event_id", ev.EventID, "attempt", ev.AttemptCount+1, "next_attempt_at", next, "error", err)
				r.metrics.RecordOutboxFailure()
				return repo.MarkRetry(ctx, ev.Seq, next, err.Error())
			}
			if err := repo.MarkPublished(ctx, ev.Seq, now); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if published > 0 {
		r.metrics.RecordOutboxPublished(published)
		r.logger.Debug(ctx, "outbox events published", "count", published)
	}
	return published, nil
}

func (r *Relay) publish(ctx context.Context, ev *models.OutboxEvent) error {
	msg, err := toMessage(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.publishWait)
	defer cancel()
	return r.publisher.Publish(ctx, msg)
}

// Run polls the outbox until ctx is done. A full batch is followed by an
// immediate next poll.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info(ctx, "outbox relay started", "interval", r.interval, "batch_size", r.batchSize)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info(ctx, "outbox relay stopped")
			return nil
		case <-timer.C:
		}

		n, err := r.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Error(ctx, "outbox relay pass failed", "error", err)
		}

		wait := r.interval
		if err == nil && n == r.batchSize {
			wait = 0
		}
		timer.Reset(wait)
	}
}

// retryDelay is the backoff before the given attempt, without jitter.
func (r *Relay) retryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.retryBase
	b.MaxInterval = r.retryMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()

	d := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		d = b.NextBackOff()
	}
	return d
}

// toMessage stamps the outbox sequence into the payload; it is only known
// once the row is inserted.
func toMessage(ev *models.OutboxEvent) (broker.Message, error) {
	body, err := models.WithSequence(ev.Payload, ev.Seq)
	if err != nil {
		return broker.Message{}, err
	}
	return broker.Message{ID: ev.EventID, Kind: string(ev.Kind), Body: body}, nil
}
