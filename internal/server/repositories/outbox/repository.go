// Package outbox stores identity events written in the same transaction as
// the identity change they describe, until the relay has published them.
package outbox

import (
	"context"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/server/models"
)

type Repository interface {
	// Enqueue appends an event and returns its sequence number.
	Enqueue(ctx context.Context, ev *models.OutboxEvent) (int64, error)

	// LeasePending locks the first limit unpublished events in sequence
	// order, including those whose next attempt is still in the future.
	// Locks are held until the surrounding transaction ends.
	LeasePending(ctx context.Context, limit int) ([]*models.OutboxEvent, error)

	// MarkPublished records a successful hand-off to the broker.
	MarkPublished(ctx context.Context, seq int64, at time.Time) error

	// MarkRetry records a failed attempt and schedules the next one.
	MarkRetry(ctx context.Context, seq int64, nextAttemptAt time.Time, lastError string) error
}
