package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/logging"
	"github.com/dmitrijs2005/streamflow/internal/role"
	"github.com/dmitrijs2005/streamflow/internal/server/models"
	"github.com/dmitrijs2005/streamflow/internal/server/repositories/repotest"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

func newTestUserService(t *testing.T) (*UserService, *repotest.Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newSQLMockDB(t)
	t.Cleanup(func() { _ = db.Close() })

	rm := repotest.NewManager()
	s := NewUserService(db, rm, logging.Discard())
	s.bcryptCost = bcrypt.MinCost
	return s, rm, mock
}

func expectTx(mock sqlmock.Sqlmock, commit bool) {
	mock.ExpectBegin()
	if commit {
		mock.ExpectCommit()
	} else {
		mock.ExpectRollback()
	}
}

func seedUser(t *testing.T, s *UserService, email string, r role.Role) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("old-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	rm := s.repomanager.(*repotest.Manager)
	u := &models.User{ID: "u-" + email, Email: email, PasswordHash: string(hash), Role: r, Version: 1, CreatedAt: s.now()}
	rm.UserStore.Put(u)
	return u
}

func TestCreate_Success_WritesCreatedEvent(t *testing.T) {
	s, rm, mock := newTestUserService(t)
	expectTx(mock, true)

	u, err := s.Create(context.Background(), "", CreateUserInput{
		Email: " ana@example.com ", Password: "pw", PasswordConfirmation: "pw", DisplayName: " Ana ",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if u.Email != "ana@example.com" || u.DisplayName != "Ana" || u.Role != role.Free || u.Version != 1 {
		t.Fatalf("unexpected user: %+v", u)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("pw")) != nil {
		t.Fatalf("password hash does not match")
	}

	if len(rm.OutboxStore.Events()) != 1 {
		t.Fatalf("expected exactly one outbox event, got %d", len(rm.OutboxStore.Events()))
	}
	var ev models.IdentityEvent
	if err := json.Unmarshal(rm.OutboxStore.Events()[0].Payload, &ev); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	if ev.Kind != models.EventCreated || ev.ID != u.ID || ev.Version != 1 || ev.Email != "ana@example.com" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestCreate_ValidationHappensBeforeAnyWrite(t *testing.T) {
	cases := []struct {
		name string
		in   CreateUserInput
	}{
		{"confirmation mismatch", CreateUserInput{Email: "a@b.co", Password: "one", PasswordConfirmation: "two"}},
		{"empty password", CreateUserInput{Email: "a@b.co"}},
		{"missing email", CreateUserInput{Password: "x", PasswordConfirmation: "x"}},
		{"malformed email", CreateUserInput{Email: "Ana <a@b.co>", Password: "x", PasswordConfirmation: "x"}},
		{"unknown role", CreateUserInput{Email: "a@b.co", Password: "x", PasswordConfirmation: "x", Role: "root"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, rm, mock := newTestUserService(t)

			_, err := s.Create(context.Background(), "", tc.in)
			if !errors.Is(err, common.ErrInvalidArgument) {
				t.Fatalf("want ErrInvalidArgument, got %v", err)
			}
			if len(rm.OutboxStore.Events()) != 0 || rm.UserStore.Len() != 0 {
				t.Fatalf("nothing must be written on validation failure")
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("no transaction expected: %v", err)
			}
		})
	}
}

func TestCreate_DuplicateEmailCaseInsensitive(t *testing.T) {
	s, rm, mock := newTestUserService(t)
	seedUser(t, s, "ana@example.com", role.Free)
	expectTx(mock, false)

	_, err := s.Create(context.Background(), "", CreateUserInput{Email: "ANA@example.com", Password: "p", PasswordConfirmation: "p"})
	if !errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
	if len(rm.OutboxStore.Events()) != 0 {
		t.Fatalf("no event expected for a rejected registration")
	}
}

func TestCreate_AdminRoleAccepted(t *testing.T) {
	s, _, mock := newTestUserService(t)
	expectTx(mock, true)

	u, err := s.Create(context.Background(), "admin-1", CreateUserInput{Email: "boss@example.com", Password: "p", PasswordConfirmation: "p", Role: "administrador"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if u.Role != role.Admin {
		t.Fatalf("role = %v", u.Role)
	}
}

func TestCreate_OutboxFailureRollsBack(t *testing.T) {
	s, rm, mock := newTestUserService(t)
	rm.OutboxStore.Err = errBoom{}
	expectTx(mock, false)

	_, err := s.Create(context.Background(), "", CreateUserInput{Email: "a@b.co", Password: "p", PasswordConfirmation: "p"})
	if !errors.Is(err, errBoom{}) {
		t.Fatalf("want boom, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestGet_DeletedIsNotFound(t *testing.T) {
	s, rm, _ := newTestUserService(t)
	u := seedUser(t, s, "ana@example.com", role.Free)

	got, err := s.Get(context.Background(), u.ID)
	if err != nil || got.ID != u.ID {
		t.Fatalf("Get live user: %v %v", got, err)
	}

	at := s.now()
	u.DeletedAt = &at
	rm.UserStore.Put(u)

	if _, err := s.Get(context.Background(), u.ID); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound for deleted user, got %v", err)
	}

	resolved, err := s.ResolveIdentity(context.Background(), u.ID)
	if err != nil || !resolved.IsDeleted() {
		t.Fatalf("ResolveIdentity must return tombstones: %v %v", resolved, err)
	}
}

func TestUpdate_ProfileAndEmailConflict(t *testing.T) {
	s, rm, mock := newTestUserService(t)
	ana := seedUser(t, s, "ana@example.com", role.Free)
	seedUser(t, s, "dan@example.com", role.Free)

	expectTx(mock, true)
	name := "Ana B."
	u, err := s.Update(context.Background(), ana.ID, ana.ID, UpdateUserInput{DisplayName: &name})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if u.DisplayName != "Ana B." || u.Version != 2 {
		t.Fatalf("unexpected user: %+v", u)
	}

	expectTx(mock, false)
	taken := "DAN@example.com"
	if _, err := s.Update(context.Background(), ana.ID, ana.ID, UpdateUserInput{Email: &taken}); !errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}

	if got := rm.OutboxStore.Kinds(); len(got) != 1 || got[0] != models.EventUpdated {
		t.Fatalf("unexpected events: %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestUpdate_SameEmailDifferentCaseIsAllowed(t *testing.T) {
	s, _, mock := newTestUserService(t)
	ana := seedUser(t, s, "ana@example.com", role.Free)
	expectTx(mock, true)

	email := "ana@example.com"
	if _, err := s.Update(context.Background(), ana.ID, ana.ID, UpdateUserInput{Email: &email}); err != nil {
		t.Fatalf("Update error: %v", err)
	}
}

func TestMutate_SerializationFailureIsUnavailable(t *testing.T) {
	s, rm, mock := newTestUserService(t)
	u := seedUser(t, s, "ana@example.com", role.Free)
	rm.UserStore.FailUpdate = &pgconn.PgError{Code: "40P01"}
	expectTx(mock, false)

	_, err := s.ChangeRole(context.Background(), "admin-1", u.ID, "premium")
	if !errors.Is(err, common.ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
	if n := len(rm.OutboxStore.Events()); n != 0 {
		t.Fatalf("no event may be written, got %d", n)
	}
}

func TestChangeRole_EmitsRoleChanged(t *testing.T) {
	s, rm, mock := newTestUserService(t)
	u := seedUser(t, s, "ana@example.com", role.Free)
	expectTx(mock, true)

	got, err := s.ChangeRole(context.Background(), "admin-1", u.ID, "premium")
	if err != nil {
		t.Fatalf("ChangeRole error: %v", err)
	}
	if got.Role != role.Premium || got.Version != 2 {
		t.Fatalf("unexpected user: %+v", got)
	}

	var ev models.IdentityEvent
	if err := json.Unmarshal(rm.OutboxStore.Events()[0].Payload, &ev); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	if ev.Kind != models.EventRoleChanged || ev.Role != role.Premium || ev.ActorID != "admin-1" || ev.Version != 2 {
		t.Fatalf("unexpected event: %+v", ev)
	}

	if _, err := s.ChangeRole(context.Background(), "admin-1", u.ID, "overlord"); !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument for unknown role, got %v", err)
	}
}

func TestChangePassword_ConfirmationMismatchLeavesHash(t *testing.T) {
	s, rm, mock := newTestUserService(t)
	u := seedUser(t, s, "ana@example.com", role.Free)

	_, err := s.ChangePassword(context.Background(), u.ID, u.ID, ChangePasswordInput{
		CurrentPassword: "old-pass", NewPassword: "new-pass", ConfirmPassword: "typo",
	})
	if !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}

	stored, _ := rm.UserStore.GetByID(context.Background(), u.ID)
	if stored.PasswordHash != u.PasswordHash {
		t.Fatalf("stored hash must not change")
	}
	if len(rm.OutboxStore.Events()) != 0 {
		t.Fatalf("no event expected")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no transaction expected: %v", err)
	}
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	s, _, mock := newTestUserService(t)
	u := seedUser(t, s, "ana@example.com", role.Free)
	expectTx(mock, false)

	_, err := s.ChangePassword(context.Background(), u.ID, u.ID, ChangePasswordInput{
		CurrentPassword: "guess", NewPassword: "new-pass", ConfirmPassword: "new-pass",
	})
	if !errors.Is(err, common.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument, got %v", err)
	}
}

func TestChangePassword_Success(t *testing.T) {
	s, rm, mock := newTestUserService(t)
	u := seedUser(t, s, "ana@example.com", role.Free)
	expectTx(mock, true)

	got, err := s.ChangePassword(context.Background(), u.ID, u.ID, ChangePasswordInput{
		CurrentPassword: "old-pass", NewPassword: "new-pass", ConfirmPassword: "new-pass",
	})
	if err != nil {
		t.Fatalf("ChangePassword error: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("new-pass")) != nil {
		t.Fatalf("new password must verify")
	}
	if k := rm.OutboxStore.Kinds(); len(k) != 1 || k[0] != models.EventUpdated {
		t.Fatalf("unexpected events: %v", k)
	}
}

func TestSoftDelete_ThenNotFound(t *testing.T) {
	s, rm, mock := newTestUserService(t)
	u := seedUser(t, s, "ana@example.com", role.Free)

	expectTx(mock, true)
	if err := s.SoftDelete(context.Background(), "admin-1", u.ID); err != nil {
		t.Fatalf("SoftDelete error: %v", err)
	}
	if _, err := s.Get(context.Background(), u.ID); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("deleted user must be not found, got %v", err)
	}

	expectTx(mock, false)
	if err := s.SoftDelete(context.Background(), "admin-1", u.ID); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("second delete must be not found, got %v", err)
	}

	if k := rm.OutboxStore.Kinds(); len(k) != 1 || k[0] != models.EventDeleted {
		t.Fatalf("unexpected events: %v", k)
	}

	users, err := s.List(context.Background(), models.UserFilter{})
	if err != nil || len(users) != 0 {
		t.Fatalf("deleted users must not be listed: %v %v", users, err)
	}
}

func TestMutate_MissingSubject(t *testing.T) {
	s, _, mock := newTestUserService(t)
	expectTx(mock, false)

	if _, err := s.ChangeRole(context.Background(), "admin-1", "ghost", "free"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want ErrorNotFound, got %v", err)
	}
}
