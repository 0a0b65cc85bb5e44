package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/dbx"
	"github.com/dmitrijs2005/streamflow/internal/role"
	"github.com/dmitrijs2005/streamflow/internal/server/models"
	"github.com/google/uuid"
)

const selectUser = `SELECT id, email, password_hash, display_name, role, version, created_at, updated_at, deleted_at
		 FROM users`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (id, email, password_hash, display_name, role, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 1, $6, $6)
		 RETURNING version
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.DisplayName, user.Role.String(), user.CreatedAt).Scan(&user.Version)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.UpdatedAt = user.CreatedAt
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}
	return r.getOne(ctx, selectUser+`
		 WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, common.ErrorNotFound
	}
	return r.getOne(ctx, selectUser+`
		 WHERE id = $1
		 FOR UPDATE`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, selectUser+`
		 WHERE lower(email) = lower($1) AND deleted_at IS NULL`, email)
}

func (r *PostgresRepository) Update(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`UPDATE users
		 SET email = $2, password_hash = $3, display_name = $4, role = $5, deleted_at = $6,
		     updated_at = $7, version = version + 1
		 WHERE id = $1
		 RETURNING version
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.DisplayName, user.Role.String(), user.DeletedAt, user.UpdatedAt).Scan(&user.Version)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {

	conds := []string{"deleted_at IS NULL"}
	args := []any{}

	if f := strings.TrimSpace(filter.Email); f != "" {
		args = append(args, "%"+f+"%")
		conds = append(conds, fmt.Sprintf("email ILIKE $%d", len(args)))
	}
	if f := strings.TrimSpace(filter.DisplayName); f != "" {
		args = append(args, "%"+f+"%")
		conds = append(conds, fmt.Sprintf("display_name ILIKE $%d", len(args)))
	}

	query := selectUser + `
		 WHERE ` + strings.Join(conds, " AND ") + `
		 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u         models.User
		roleName  string
		deletedAt sql.NullTime
	)

	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &roleName, &u.Version,
		&u.CreatedAt, &u.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}

	r, err := role.Parse(roleName)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	u.Role = r

	if deletedAt.Valid {
		t := deletedAt.Time
		u.DeletedAt = &t
	}

	return &u, nil
}

// validID reports whether id can name a row; the id column is a UUID and
// anything else would fail the query.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
