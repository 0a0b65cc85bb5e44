// Package users declares the identity repository of the owning users
// service together with its PostgreSQL implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/streamflow/internal/server/models"
)

type Repository interface {
	// Create inserts a new identity. A duplicate live email yields
	// common.ErrAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByID returns the identity including soft-deleted ones.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByIDForUpdate is GetByID that also locks the row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)

	// GetByEmail finds a live identity by email, case-insensitively.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Update persists all mutable fields and bumps the version.
	Update(ctx context.Context, user *models.User) (*models.User, error)

	// List returns live identities matching the filter.
	List(ctx context.Context, filter models.UserFilter) ([]*models.User, error)
}
