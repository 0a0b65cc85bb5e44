// Package services contains server-side business logic. This file implements
// UserService, the owner of identity records: every identity mutation is
// committed together with the replication event describing it.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/dbx"
	"github.com/dmitrijs2005/streamflow/internal/logging"
	"github.com/dmitrijs2005/streamflow/internal/role"
	"github.com/dmitrijs2005/streamflow/internal/server/models"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// CreateUserInput is a registration request. Role may be empty (free).
type CreateUserInput struct {
	Email                string
	Password             string
	PasswordConfirmation string
	DisplayName          string
	Role                 string
}

// UpdateUserInput carries optional profile changes; nil fields are kept.
type UpdateUserInput struct {
	Email       *string
	DisplayName *string
}

// ChangePasswordInput carries a password change for one identity.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

// UserService manages identities in the authoritative store. actorID
// arguments name the authenticated caller and are recorded on events;
// anonymous registration passes an empty actorID.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	bcryptCost  int
	now         func() time.Time
	newID       func() string
}

// NewUserService constructs a UserService over the users database.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *UserService {
	return &UserService{
		db:          db,
		repomanager: m,
		logger:      l.With("module", "user_service"),
		bcryptCost:  bcrypt.DefaultCost,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// Create registers a new identity and emits a created event.
func (s *UserService) Create(ctx context.Context, actorID string, in CreateUserInput) (*models.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, fmt.Errorf("%w: password is required", common.ErrInvalidArgument)
	}
	if in.Password != in.PasswordConfirmation {
		return nil, fmt.Errorf("%w: passwords do not match", common.ErrInvalidArgument)
	}
	r, err := role.ParseOrDefault(in.Role, role.Free)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidArgument, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	now := s.now()
	user := &models.User{
		ID:           s.newID(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  strings.TrimSpace(in.DisplayName),
		Role:         r,
		CreatedAt:    now,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		if err := ensureEmailFree(ctx, repo.GetByEmail, email, ""); err != nil {
			return err
		}
		if _, err := repo.Create(ctx, user); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, models.EventCreated, user, actorID)
	})
	if err != nil {
		return nil, txError(err)
	}

	s.logger.Info(ctx, "user created", "subject", user.ID, "role", user.Role.String(), "actor", actorID)
	return user, nil
}

// Get returns a live identity; soft-deleted identities are not found.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsDeleted() {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

// ResolveIdentity returns the identity including soft-deleted ones; it is
// the authoritative resolver used by the authorization interceptor.
func (s *UserService) ResolveIdentity(ctx context.Context, id string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

// List returns live identities matching filter.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {
	return s.repomanager.Users(s.db).List(ctx, filter)
}

// Update changes profile fields and emits an updated event.
func (s *UserService) Update(ctx context.Context, actorID, id string, in UpdateUserInput) (*models.User, error) {
	var email string
	if in.Email != nil {
		var err error
		if email, err = normalizeEmail(*in.Email); err != nil {
			return nil, err
		}
	}

	return s.mutate(ctx, actorID, id, models.EventUpdated, func(ctx context.Context, repo usersRepo, u *models.User) error {
		if in.Email != nil && !strings.EqualFold(email, u.Email) {
			if err := ensureEmailFree(ctx, repo.GetByEmail, email, u.ID); err != nil {
				return err
			}
			u.Email = email
		}
		if in.DisplayName != nil {
			u.DisplayName = strings.TrimSpace(*in.DisplayName)
		}
		return nil
	})
}

// ChangeRole assigns a new role and emits a role_changed event.
func (s *UserService) ChangeRole(ctx context.Context, actorID, id, roleName string) (*models.User, error) {
	r, err := role.Parse(roleName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidArgument, err)
	}

	return s.mutate(ctx, actorID, id, models.EventRoleChanged, func(_ context.Context, _ usersRepo, u *models.User) error {
		u.Role = r
		return nil
	})
}

// ChangePassword replaces the password hash once the current password is
// confirmed. A confirmation mismatch is rejected before anything is read
// or written.
func (s *UserService) ChangePassword(ctx context.Context, actorID, id string, in ChangePasswordInput) (*models.User, error) {
	if in.NewPassword == "" {
		return nil, fmt.Errorf("%w: new password is required", common.ErrInvalidArgument)
	}
	if in.NewPassword != in.ConfirmPassword {
		return nil, fmt.Errorf("%w: new password and confirmation do not match", common.ErrInvalidArgument)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	return s.mutate(ctx, actorID, id, models.EventUpdated, func(_ context.Context, _ usersRepo, u *models.User) error {
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.CurrentPassword)) != nil {
			return fmt.Errorf("%w: current password is incorrect", common.ErrInvalidArgument)
		}
		u.PasswordHash = string(hash)
		return nil
	})
}

// SoftDelete marks the identity deleted and emits a deleted event.
func (s *UserService) SoftDelete(ctx context.Context, actorID, id string) error {
	_, err := s.mutate(ctx, actorID, id, models.EventDeleted, func(_ context.Context, _ usersRepo, u *models.User) error {
		at := s.now()
		u.DeletedAt = &at
		return nil
	})
	return err
}

// --- helpers below ---

type usersRepo interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// mutate locks the identity row, applies change, persists it and writes
// the matching outbox event, all in one transaction.
func (s *UserService) mutate(ctx context.Context, actorID, id string, kind models.EventKind,
	change func(ctx context.Context, repo usersRepo, u *models.User) error) (*models.User, error) {

	var result *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		u, err := repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if u.IsDeleted() {
			return common.ErrorNotFound
		}

		if err := change(ctx, repo, u); err != nil {
			return err
		}

		u.UpdatedAt = s.now()
		if result, err = repo.Update(ctx, u); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, kind, result, actorID)
	})
	if err != nil {
		return nil, txError(err)
	}

	s.logger.Info(ctx, "user "+string(kind), "subject", id, "version", result.Version, "actor", actorID)
	return result, nil
}

// txError reports a transaction lost to a concurrent writer as unavailable
// so that callers retry it.
func txError(err error) error {
	if dbx.IsRetryable(err) {
		return fmt.Errorf("%w: concurrent update, retry", common.ErrUnavailable)
	}
	return err
}

func (s *UserService) enqueue(ctx context.Context, tx dbx.DBTX, kind models.EventKind, u *models.User, actorID string) error {
	ev := models.NewIdentityEvent(s.newID(), kind, u, actorID, s.now())

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("error encoding event: %w", err)
	}

	_, err = s.repomanager.Outbox(tx).Enqueue(ctx, &models.OutboxEvent{
		EventID:   ev.EventID,
		SubjectID: u.ID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: ev.OccurredAt,
	})
	return err
}

func ensureEmailFree(ctx context.Context, lookup func(context.Context, string) (*models.User, error), email, selfID string) error {
	existing, err := lookup(ctx, email)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return common.ErrAlreadyExists
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", common.ErrInvalidArgument)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: malformed email", common.ErrInvalidArgument)
	}
	return email, nil
}
