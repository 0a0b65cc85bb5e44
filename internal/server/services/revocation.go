package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/logging"
	"github.com/dmitrijs2005/streamflow/internal/server/auth"
	"github.com/dmitrijs2005/streamflow/internal/server/metrics"
	"github.com/dmitrijs2005/streamflow/internal/server/models"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/repomanager"
)

// RevocationService maintains the revocation ledger. Revoked hashes seen
// by this process are cached in a Blacklist until the token's expiry.
type RevocationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	verifier    *auth.Verifier
	cache       *auth.Blacklist
	logger      logging.Logger
	metrics     metrics.Recorder
	now         func() time.Time
}

func NewRevocationService(db *sql.DB, m repomanager.RepositoryManager, v *auth.Verifier, l logging.Logger, rec metrics.Recorder) *RevocationService {
	return &RevocationService{
		db:          db,
		repomanager: m,
		verifier:    v,
		cache:       auth.NewBlacklist(),
		logger:      l.With("module", "revocation_service"),
		metrics:     rec,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Revoke verifies token and records it in the ledger. Invalid and expired
// tokens are rejected with common.ErrInvalidToken before any write.
// Revoking the same token again succeeds without a second row.
func (s *RevocationService) Revoke(ctx context.Context, token string) error {
	claims, err := s.verifier.Verify(token)
	if err != nil {
		return err
	}

	entry := &models.RevokedToken{
		TokenHash: auth.HashToken(token),
		UserID:    claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
		RevokedAt: s.now(),
	}

	inserted, err := s.repomanager.RevokedTokens(s.db).Create(ctx, entry)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	s.cache.Add(entry.TokenHash, entry.ExpiresAt)
	s.metrics.RecordRevocation(inserted)

	if inserted {
		s.logger.Info(ctx, "token revoked", "subject", entry.UserID, "token_hash", entry.TokenHash)
	}
	return nil
}

// IsRevoked reports whether tokenHash has a ledger entry. Lookup failures
// are returned as errors; callers must treat them as a rejection.
func (s *RevocationService) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	if s.cache.Contains(tokenHash) {
		return true, nil
	}

	row, err := s.repomanager.RevokedTokens(s.db).Find(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}

	s.cache.Add(tokenHash, row.ExpiresAt)
	return true, nil
}

// Prune removes ledger rows and cache entries for tokens that have expired.
func (s *RevocationService) Prune(ctx context.Context) (int64, error) {
	now := s.now()
	s.cache.Cleanup(now)

	n, err := s.repomanager.RevokedTokens(s.db).DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	s.metrics.RecordPruned(n)
	if n > 0 {
		s.logger.Debug(ctx, "pruned revocation entries", "count", n)
	}
	return n, nil
}
