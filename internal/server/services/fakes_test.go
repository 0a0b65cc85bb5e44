package services

import (
	"database/sql"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/streamflow/internal/server/metrics"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

type fakeRecorder struct {
	metrics.Nop
	mu     sync.Mutex
	logins []string
	revs   []bool
	pruned int64
}

func (r *fakeRecorder) RecordLogin(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins = append(r.logins, outcome)
}

func (r *fakeRecorder) RecordRevocation(inserted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revs = append(r.revs, inserted)
}

func (r *fakeRecorder) RecordPruned(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruned += n
}
