// Package replicas stores the auth service's local copy of identities
// received from the users service. Rows are only ever written by the
// replication applier.
package replicas

import (
	"context"

	"github.com/dmitrijs2005/streamflow/internal/server/models"
)

type Repository interface {
	// Apply upserts u unless the stored copy already has the same or a
	// newer version. applied is false for stale or duplicate events.
	Apply(ctx context.Context, u *models.User) (applied bool, err error)

	// GetByID returns the replica including soft-deleted identities.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// FindByEmail returns the best match for email, case-insensitively.
	// Replicas do not enforce uniqueness, so live and most recently
	// updated rows win.
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}
