// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/dmitrijs2005/streamflow/internal/dbx"
	"github.com/dmitrijs2005/streamflow/internal/server/migrations"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/outbox"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/replicas"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/revokedtokens"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and runs the migrations of the database it was built for.
type PostgresRepositoryManager struct {
	migrations fs.FS
}

// Users returns a users.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

// Outbox returns an outbox.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Outbox(db dbx.DBTX) outbox.Repository {
	return outbox.NewPostgresRepository(db)
}

// RevokedTokens returns a revokedtokens.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) RevokedTokens(db dbx.DBTX) revokedtokens.Repository {
	return revokedtokens.NewPostgresRepository(db)
}

// Replicas returns a replicas.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Replicas(db dbx.DBTX) replicas.Repository {
	return replicas.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(m.migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewUsersRepositoryManager serves the users service database: identities
// and the replication outbox.
func NewUsersRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{migrations: migrations.Users()}
}

// NewAuthRepositoryManager serves the auth service database: revocation
// ledger and identity replicas.
func NewAuthRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{migrations: migrations.Auth()}
}
