// Package http serves the public HTTP API of the auth service: login,
// logout, password change forwarding and the health and metrics
// endpoints.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/httperr"
	"github.com/dmitrijs2005/streamflow/internal/logging"
	"github.com/dmitrijs2005/streamflow/internal/rpc"
	"github.com/dmitrijs2005/streamflow/internal/server/auth"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 16

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*auth.Token, error)
}

type Revoker interface {
	Revoke(ctx context.Context, token string) error
}

// PasswordChanger changes a password on the identity owner on behalf of
// the caller identified by authorization.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, authorization string, in *rpc.ChangePasswordRequest) (*rpc.User, error)
}

type Handler struct {
	tokens      Authenticator
	revocations Revoker
	users       PasswordChanger
	logger      logging.Logger
}

func NewHandler(a Authenticator, r Revoker, pc PasswordChanger, l logging.Logger) *Handler {
	return &Handler{
		tokens:      a,
		revocations: r,
		users:       pc,
		logger:      l.With("module", "http_handler"),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token            string `json:"token"`
	TokenType        string `json:"tokenType"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

type logoutRequest struct {
	Token string `json:"token"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decode(w, r, &in); err != nil {
		httperr.Write(w, err)
		return
	}

	token, err := h.tokens.Authenticate(r.Context(), in.Email, in.Password)
	if err != nil {
		h.fail(r.Context(), w, "login", err)
		return
	}

	httperr.WriteJSON(w, http.StatusOK, loginResponse{
		Token:            token.Value,
		TokenType:        common.TokenType,
		ExpiresInSeconds: int64(token.ExpiresAt.Sub(token.IssuedAt).Seconds()),
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var in logoutRequest
	if err := decode(w, r, &in); err != nil {
		httperr.Write(w, err)
		return
	}

	token := strings.TrimSpace(in.Token)
	if token == "" {
		httperr.Write(w, fmt.Errorf("%w: token is required", common.ErrInvalidArgument))
		return
	}

	if err := h.revocations.Revoke(r.Context(), token); err != nil {
		h.fail(r.Context(), w, "logout", err)
		return
	}

	httperr.WriteJSON(w, http.StatusOK, httperr.Body{Detail: "logged out"})
}

// ChangePassword forwards the request to the identity owner with the
// caller's own bearer. The route is authorized before it gets here.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var in passwordRequest
	if err := decode(w, r, &in); err != nil {
		httperr.Write(w, err)
		return
	}
	if in.NewPassword != in.ConfirmPassword {
		httperr.Write(w, fmt.Errorf("%w: new password and confirmation do not match", common.ErrInvalidArgument))
		return
	}

	u, err := h.users.ChangePassword(r.Context(), r.Header.Get(common.AuthorizationHeaderName), &rpc.ChangePasswordRequest{
		Id:              chi.URLParam(r, "id"),
		CurrentPassword: in.CurrentPassword,
		NewPassword:     in.NewPassword,
		ConfirmPassword: in.ConfirmPassword,
	})
	if err != nil {
		h.fail(r.Context(), w, "change password", err)
		return
	}

	httperr.WriteJSON(w, http.StatusOK, userResponse{
		ID:          u.Id,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	})
}

func Healthz(w http.ResponseWriter, _ *http.Request) {
	httperr.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code, _ := httperr.Status(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error(ctx, op+" failed", "error", err)
	}
	httperr.Write(w, err)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", common.ErrInvalidArgument)
	}
	return nil
}
