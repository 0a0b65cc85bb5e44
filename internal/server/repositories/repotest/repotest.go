// Package repotest provides in-memory repositories for tests of the
// services, transports and replication workers. The stores follow the
// semantics of the Postgres repositories: not-found errors, version
// bumps, case-insensitive email lookups and version-gated replica writes.
package repotest

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/dbx"
	"github.com/dmitrijs2005/streamflow/internal/server/models"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/outbox"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/replicas"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/revokedtokens"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/users"
)

// Manager implements repomanager.RepositoryManager. The db handle passed
// to the accessors is ignored; all callers share the same stores.
type Manager struct {
	UserStore    *Users
	OutboxStore  *Outbox
	RevokedStore *RevokedTokens
	ReplicaStore *Replicas
}

func NewManager() *Manager {
	return &Manager{
		UserStore:    &Users{byID: map[string]*models.User{}},
		OutboxStore:  &Outbox{},
		RevokedStore: &RevokedTokens{rows: map[string]*models.RevokedToken{}},
		ReplicaStore: &Replicas{byID: map[string]*models.User{}},
	}
}

func (m *Manager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *Manager) Users(dbx.DBTX) users.Repository                 { return m.UserStore }
func (m *Manager) Outbox(dbx.DBTX) outbox.Repository               { return m.OutboxStore }
func (m *Manager) RevokedTokens(dbx.DBTX) revokedtokens.Repository { return m.RevokedStore }
func (m *Manager) Replicas(dbx.DBTX) replicas.Repository           { return m.ReplicaStore }

// --- users ---

type Users struct {
	mu   sync.Mutex
	byID map[string]*models.User

	// FailGet and FailUpdate, when set, are returned by the matching calls.
	FailGet    error
	FailUpdate error
}

// Put stores a copy of u as is.
func (r *Users) Put(u *models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *u
	r.byID[u.ID] = &c
}

func (r *Users) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *Users) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.byID {
		if !cur.IsDeleted() && strings.EqualFold(cur.Email, u.Email) {
			return nil, common.ErrAlreadyExists
		}
	}
	u.Version = 1
	u.UpdatedAt = u.CreatedAt
	c := *u
	r.byID[u.ID] = &c
	return u, nil
}

func (r *Users) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailGet != nil {
		return nil, r.FailGet
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (r *Users) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r *Users) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if !u.IsDeleted() && strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *Users) Update(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailUpdate != nil {
		return nil, r.FailUpdate
	}
	cur, ok := r.byID[u.ID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.Version = cur.Version + 1
	c := *u
	r.byID[u.ID] = &c
	return u, nil
}

func (r *Users) List(_ context.Context, filter models.UserFilter) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.User, 0)
	for _, u := range r.byID {
		if u.IsDeleted() ||
			!containsFold(u.Email, filter.Email) ||
			!containsFold(u.DisplayName, filter.DisplayName) {
			continue
		}
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func containsFold(s, sub string) bool {
	return sub == "" || strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// --- outbox ---

type Outbox struct {
	mu     sync.Mutex
	events []*models.OutboxEvent

	// Err, when set, is returned by Enqueue.
	Err error
}

func (r *Outbox) Enqueue(_ context.Context, ev *models.OutboxEvent) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	ev.Seq = int64(len(r.events) + 1)
	if ev.NextAttemptAt.IsZero() {
		ev.NextAttemptAt = ev.CreatedAt
	}
	c := *ev
	r.events = append(r.events, &c)
	return ev.Seq, nil
}

func (r *Outbox) LeasePending(ctx context.Context, limit int) ([]*models.OutboxEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.OutboxEvent
	for _, ev := range r.events {
		if len(out) >= limit {
			break
		}
		if ev.PublishedAt == nil {
			c := *ev
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *Outbox) MarkPublished(_ context.Context, seq int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, err := r.find(seq)
	if err != nil {
		return err
	}
	t := at
	ev.PublishedAt = &t
	return nil
}

func (r *Outbox) MarkRetry(_ context.Context, seq int64, next time.Time, lastErr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, err := r.find(seq)
	if err != nil {
		return err
	}
	ev.AttemptCount++
	ev.NextAttemptAt = next
	ev.LastError = lastErr
	return nil
}

func (r *Outbox) find(seq int64) (*models.OutboxEvent, error) {
	if seq < 1 || int(seq) > len(r.events) {
		return nil, common.ErrorNotFound
	}
	return r.events[seq-1], nil
}

// Events returns copies of all events in sequence order.
func (r *Outbox) Events() []*models.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.OutboxEvent, 0, len(r.events))
	for _, ev := range r.events {
		c := *ev
		out = append(out, &c)
	}
	return out
}

// Kinds returns the kinds of all events in sequence order.
func (r *Outbox) Kinds() []models.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

// --- revoked tokens ---

type RevokedTokens struct {
	mu    sync.Mutex
	rows  map[string]*models.RevokedToken
	finds int

	// Err, FindErr and PruneErr, when set, are returned by Create, Find
	// and DeleteExpired.
	Err      error
	FindErr  error
	PruneErr error
}

func (r *RevokedTokens) Create(_ context.Context, t *models.RevokedToken) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	if _, ok := r.rows[t.TokenHash]; ok {
		return false, nil
	}
	c := *t
	r.rows[t.TokenHash] = &c
	return true, nil
}

func (r *RevokedTokens) Find(_ context.Context, hash string) (*models.RevokedToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finds++
	if r.FindErr != nil {
		return nil, r.FindErr
	}
	t, ok := r.rows[hash]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (r *RevokedTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.PruneErr != nil {
		return 0, r.PruneErr
	}
	var n int64
	for h, t := range r.rows {
		if !t.ExpiresAt.After(now) {
			delete(r.rows, h)
			n++
		}
	}
	return n, nil
}

// Get returns the stored row for hash or nil.
func (r *RevokedTokens) Get(hash string) *models.RevokedToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[hash]
	if !ok {
		return nil
	}
	c := *t
	return &c
}

func (r *RevokedTokens) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// Finds returns how many Find calls reached the store.
func (r *RevokedTokens) Finds() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finds
}

// --- replicas ---

type Replicas struct {
	mu   sync.Mutex
	byID map[string]*models.User

	// Err, when set, is returned by every call.
	Err error
}

func (r *Replicas) Apply(_ context.Context, u *models.User) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	if cur, ok := r.byID[u.ID]; ok && cur.Version >= u.Version {
		return false, nil
	}
	c := *u
	r.byID[u.ID] = &c
	return true, nil
}

func (r *Replicas) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (r *Replicas) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	var best *models.User
	for _, u := range r.byID {
		if !strings.EqualFold(u.Email, email) {
			continue
		}
		if best == nil || (best.IsDeleted() && !u.IsDeleted()) ||
			(best.IsDeleted() == u.IsDeleted() && u.UpdatedAt.After(best.UpdatedAt)) {
			best = u
		}
	}
	if best == nil {
		return nil, common.ErrorNotFound
	}
	c := *best
	return &c, nil
}

// SetErr replaces Err while other goroutines may be using the store.
func (r *Replicas) SetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = err
}

// Get returns a copy of the replica row for id or nil.
func (r *Replicas) Get(id string) *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil
	}
	c := *u
	return &c
}

func (r *Replicas) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
