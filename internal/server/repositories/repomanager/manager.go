package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/streamflow/internal/dbx"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/outbox"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/replicas"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/revokedtokens"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Outbox(db dbx.DBTX) outbox.Repository
	RevokedTokens(db dbx.DBTX) revokedtokens.Repository
	Replicas(db dbx.DBTX) replicas.Repository
}
