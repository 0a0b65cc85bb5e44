package replicas

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/dbx"
	"github.com/dmitrijs2005/streamflow/internal/role"
	"github.com/dmitrijs2005/streamflow/internal/server/models"
	"github.com/google/uuid"
)

const selectReplica = `SELECT id, email, password_hash, display_name, role, version, created_at, updated_at, deleted_at
		 FROM identity_replicas`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Apply(ctx context.Context, u *models.User) (bool, error) {

	query :=
		`INSERT INTO identity_replicas (id, email, password_hash, display_name, role, version, created_at, updated_at, deleted_at, applied_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		 ON CONFLICT (id) DO UPDATE
		 SET email = EXCLUDED.email, password_hash = EXCLUDED.password_hash, display_name = EXCLUDED.display_name,
		     role = EXCLUDED.role, version = EXCLUDED.version, created_at = EXCLUDED.created_at,
		     updated_at = EXCLUDED.updated_at, deleted_at = EXCLUDED.deleted_at, applied_at = now()
		 WHERE identity_replicas.version < EXCLUDED.version
		 `

	res, err := r.db.ExecContext(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.DisplayName, u.Role.String(), u.Version, u.CreatedAt, u.UpdatedAt, u.DeletedAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return n > 0, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}
	return r.getOne(ctx, selectReplica+`
		 WHERE id = $1`, id)
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, selectReplica+`
		 WHERE lower(email) = lower($1)
		 ORDER BY deleted_at IS NULL DESC, updated_at DESC
		 LIMIT 1`, email)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	var (
		u         models.User
		roleName  string
		deletedAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName,
		&roleName, &u.Version, &u.CreatedAt, &u.UpdatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if u.Role, err = role.Parse(roleName); err != nil {
		return nil, fmt.Errorf("replica %s: %w", u.ID, err)
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		u.DeletedAt = &t
	}

	return &u, nil
}
