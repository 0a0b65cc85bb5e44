package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/logging"
	"github.com/dmitrijs2005/streamflow/internal/server/auth"
	"github.com/dmitrijs2005/streamflow/internal/server/metrics"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// TokenService authenticates credentials against the local identity
// replica and mints session tokens. Login never writes to any store.
type TokenService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      *auth.Issuer
	logger      logging.Logger
	metrics     metrics.Recorder
	dummyHash   []byte
}

// NewTokenService constructs a TokenService reading identities from the
// replica table of db.
func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, issuer *auth.Issuer, l logging.Logger, rec metrics.Recorder) *TokenService {
	// Unknown emails are compared against this hash so that both failure
	// paths pay for one bcrypt comparison.
	dummy, err := bcrypt.GenerateFromPassword([]byte("streamflow-dummy-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}

	return &TokenService{
		db:          db,
		repomanager: m,
		issuer:      issuer,
		logger:      l.With("module", "token_service"),
		metrics:     rec,
		dummyHash:   dummy,
	}
}

// Authenticate verifies email and password and returns a fresh token.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials;
// a soft-deleted account yields ErrAccountDisabled once its password
// has been confirmed.
func (s *TokenService) Authenticate(ctx context.Context, email, password string) (*auth.Token, error) {
	email = strings.TrimSpace(email)

	user, err := s.repomanager.Replicas(s.db).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			s.metrics.RecordLogin("invalid_credentials")
			return nil, common.ErrInvalidCredentials
		}
		s.logger.Error(ctx, "identity lookup failed", "error", err)
		s.metrics.RecordLogin("error")
		return nil, common.ErrUnavailable
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.metrics.RecordLogin("invalid_credentials")
		return nil, common.ErrInvalidCredentials
	}

	if user.IsDeleted() {
		s.logger.Warn(ctx, "login for deleted account", "subject", user.ID)
		s.metrics.RecordLogin("disabled")
		return nil, common.ErrAccountDisabled
	}

	token, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		s.logger.Error(ctx, "token signing failed", "subject", user.ID, "error", err)
		s.metrics.RecordLogin("error")
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "token issued", "subject", user.ID, "jti", token.ID)
	s.metrics.RecordLogin("success")
	return token, nil
}
