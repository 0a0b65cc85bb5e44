package outbox

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestEnqueue_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	q := `(?s)^INSERT\s+INTO\s+identity_outbox\s*\(event_id,\s*subject_id,\s*kind,\s*payload,\s*created_at,\s*next_attempt_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$5\)\s*RETURNING\s+seq\s*$`
	mock.ExpectQuery(q).
		WithArgs("ev-1", "u-1", "created", []byte(`{}`), now).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(11)))

	ev := &models.OutboxEvent{EventID: "ev-1", SubjectID: "u-1", Kind: models.EventCreated, Payload: []byte(`{}`), CreatedAt: now}
	seq, err := repo.Enqueue(context.Background(), ev)
	if err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	if seq != 11 || ev.Seq != 11 {
		t.Fatalf("unexpected seq: %d / %d", seq, ev.Seq)
	}
}

func TestEnqueue_Validation(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	cases := []*models.OutboxEvent{
		nil,
		{EventID: " ", SubjectID: "u", Kind: models.EventCreated},
		{EventID: "e", SubjectID: "", Kind: models.EventCreated},
		{EventID: "e", SubjectID: "u", Kind: "renamed"},
	}
	for i, ev := range cases {
		if _, err := repo.Enqueue(context.Background(), ev); !errors.Is(err, common.ErrInvalidArgument) {
			t.Fatalf("case %d: want ErrInvalidArgument, got %v", i, err)
		}
	}
}

func TestEnqueue_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+identity_outbox`).WillReturnError(errors.New("db down"))

	_, err := repo.Enqueue(context.Background(), &models.OutboxEvent{EventID: "e", SubjectID: "u", Kind: models.EventDeleted})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestLeasePending_OrderedAndLocked(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	q := `(?s)^SELECT\s+seq,.*FROM\s+identity_outbox\s+WHERE\s+published_at\s+IS\s+NULL\s+ORDER\s+BY\s+seq\s+LIMIT\s+\$1\s+FOR\s+UPDATE\s+SKIP\s+LOCKED\s*$`
	mock.ExpectQuery(q).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "event_id", "subject_id", "kind", "payload", "created_at", "attempt_count", "next_attempt_at", "last_error"}).
			AddRow(int64(1), "e1", "u1", "created", []byte(`{"a":1}`), now, 0, now, "").
			AddRow(int64(2), "e2", "u1", "role_changed", []byte(`{"a":2}`), now, 2, now, "broker down"))

	got, err := repo.LeasePending(context.Background(), 10)
	if err != nil {
		t.Fatalf("LeasePending error: %v", err)
	}
	if len(got) != 2 || got[0].Seq != 1 || got[1].Kind != models.EventRoleChanged || got[1].AttemptCount != 2 {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestLeasePending_ContextAndLimit(t *testing.T) {
	repo, _, db := newRepoWithMock(t)
	defer db.Close()

	got, err := repo.LeasePending(context.Background(), 0)
	if err != nil || got != nil {
		t.Fatalf("zero limit must be a no-op, got %v %v", got, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := repo.LeasePending(ctx, 5); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestMarkPublished(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Now().UTC()
	q := `(?s)^UPDATE\s+identity_outbox\s+SET\s+published_at\s*=\s*\$2,.*WHERE\s+seq\s*=\s*\$1\s+AND\s+published_at\s+IS\s+NULL\s*$`
	mock.ExpectExec(q).WithArgs(int64(7), at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(int64(8), at).WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.MarkPublished(context.Background(), 7, at); err != nil {
		t.Fatalf("MarkPublished error: %v", err)
	}
	if err := repo.MarkPublished(context.Background(), 8, at); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound for already published row, got %v", err)
	}
}

func TestMarkRetry(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	next := time.Now().Add(time.Second).UTC()
	q := `(?s)^UPDATE\s+identity_outbox\s+SET\s+attempt_count\s*=\s*attempt_count\s*\+\s*1,\s*next_attempt_at\s*=\s*\$2,\s*last_error\s*=\s*\$3`
	mock.ExpectExec(q).WithArgs(int64(3), next, "boom").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkRetry(context.Background(), 3, next, "  boom \n"); err != nil {
		t.Fatalf("MarkRetry error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
