package revokedtokens

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

const insertQ = `(?s)^\s*INSERT\s+INTO\s+revoked_tokens\s*\(token_hash,\s*user_id,\s*expires_at,\s*revoked_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*ON\s+CONFLICT\s*\(token_hash\)\s*DO\s+NOTHING\s*$`

func TestCreate_InsertedThenDuplicate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(time.Hour).UTC()
	at := time.Now().UTC()
	rt := &models.RevokedToken{TokenHash: "h1", UserID: "u1", ExpiresAt: exp, RevokedAt: at}

	mock.ExpectExec(insertQ).WithArgs("h1", "u1", exp, at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertQ).WithArgs("h1", "u1", exp, at).WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.Create(context.Background(), rt)
	if err != nil || !inserted {
		t.Fatalf("first revoke: inserted=%v err=%v", inserted, err)
	}
	inserted, err = repo.Create(context.Background(), rt)
	if err != nil || inserted {
		t.Fatalf("second revoke must be a silent no-op: inserted=%v err=%v", inserted, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQ).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.RevokedToken{TokenHash: "h"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFind_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+token_hash,\s*user_id,\s*expires_at,\s*revoked_at\s+FROM\s+revoked_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s*$`

	exp := time.Now().Add(10 * time.Minute)
	at := time.Now()
	mock.ExpectQuery(q).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows([]string{"token_hash", "user_id", "expires_at", "revoked_at"}).AddRow("h1", "u1", exp, at))

	got, err := repo.Find(context.Background(), "h1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "u1" || !got.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestFind_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT.*FROM\s+revoked_tokens`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFind_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)SELECT.*FROM\s+revoked_tokens`).
		WithArgs("h1").
		WillReturnError(errors.New("db err"))

	_, err := repo.Find(context.Background(), "h1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	q := `(?s)^\s*DELETE\s+FROM\s+revoked_tokens\s+WHERE\s+expires_at\s*<=\s*\$1\s*$`
	mock.ExpectExec(q).WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 pruned rows, got %d", n)
	}
}

func TestDeleteExpired_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)DELETE\s+FROM\s+revoked_tokens`).WillReturnError(errors.New("db err"))

	_, err := repo.DeleteExpired(context.Background(), time.Now())
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
