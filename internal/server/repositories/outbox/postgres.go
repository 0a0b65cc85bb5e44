package outbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/dbx"
	"github.com/dmitrijs2005/streamflow/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Enqueue(ctx context.Context, ev *models.OutboxEvent) (int64, error) {
	if ev == nil {
		return 0, fmt.Errorf("%w: outbox event is required", common.ErrInvalidArgument)
	}
	if strings.TrimSpace(ev.EventID) == "" || strings.TrimSpace(ev.SubjectID) == "" {
		return 0, fmt.Errorf("%w: event id and subject id are required", common.ErrInvalidArgument)
	}
	if !ev.Kind.Valid() {
		return 0, fmt.Errorf("%w: unknown event kind %q", common.ErrInvalidArgument, ev.Kind)
	}

	query :=
		`INSERT INTO identity_outbox (event_id, subject_id, kind, payload, created_at, next_attempt_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 RETURNING seq
		 `

	var seq int64
	err := r.db.QueryRowContext(ctx, query, ev.EventID, ev.SubjectID, string(ev.Kind), ev.Payload, ev.CreatedAt).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	ev.Seq = seq
	return seq, nil
}

func (r *PostgresRepository) LeasePending(ctx context.Context, limit int) ([]*models.OutboxEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	query :=
		`SELECT seq, event_id, subject_id, kind, payload, created_at, attempt_count, next_attempt_at, last_error
		 FROM identity_outbox
		 WHERE published_at IS NULL
		 ORDER BY seq
		 LIMIT $1
		 FOR UPDATE SKIP LOCKED
		 `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	events := make([]*models.OutboxEvent, 0, limit)
	for rows.Next() {
		var (
			ev   models.OutboxEvent
			kind string
		)
		if err := rows.Scan(&ev.Seq, &ev.EventID, &ev.SubjectID, &kind, &ev.Payload, &ev.CreatedAt,
			&ev.AttemptCount, &ev.NextAttemptAt, &ev.LastError); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ev.Kind = models.EventKind(kind)
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return events, nil
}

func (r *PostgresRepository) MarkPublished(ctx context.Context, seq int64, at time.Time) error {
	query :=
		`UPDATE identity_outbox
		 SET published_at = $2, attempt_count = attempt_count + 1, last_error = ''
		 WHERE seq = $1 AND published_at IS NULL
		 `

	return r.execOne(ctx, query, seq, at)
}

func (r *PostgresRepository) MarkRetry(ctx context.Context, seq int64, nextAttemptAt time.Time, lastError string) error {
	query :=
		`UPDATE identity_outbox
		 SET attempt_count = attempt_count + 1, next_attempt_at = $2, last_error = $3
		 WHERE seq = $1 AND published_at IS NULL
		 `

	return r.execOne(ctx, query, seq, nextAttemptAt, strings.TrimSpace(lastError))
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
