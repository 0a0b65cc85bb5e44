// Package revokedtokens declares the revocation ledger repository.
package revokedtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/server/models"
)

// Repository stores revoked token hashes until their natural expiry.
type Repository interface {
	// Create records a revocation. Recording the same hash twice is a no-op;
	// inserted reports whether this call created the row.
	Create(ctx context.Context, token *models.RevokedToken) (inserted bool, err error)

	// Find returns the ledger row for hash or common.ErrorNotFound.
	Find(ctx context.Context, tokenHash string) (*models.RevokedToken, error)

	// DeleteExpired removes rows whose token expired at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
