package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/logging"
	"github.com/dmitrijs2005/streamflow/internal/rpc"
	"github.com/dmitrijs2005/streamflow/internal/server/authz"
	"github.com/dmitrijs2005/streamflow/internal/server/grpc/grpcerr"
	"github.com/dmitrijs2005/streamflow/internal/server/models"
	"github.com/dmitrijs2005/streamflow/internal/server/services"
)

// UserManager is the identity API served over gRPC; services.UserService
// implements it.
type UserManager interface {
	Create(ctx context.Context, actorID string, in services.CreateUserInput) (*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, actorID, id string, in services.UpdateUserInput) (*models.User, error)
	ChangeRole(ctx context.Context, actorID, id, roleName string) (*models.User, error)
	ChangePassword(ctx context.Context, actorID, id string, in services.ChangePasswordInput) (*models.User, error)
	SoftDelete(ctx context.Context, actorID, id string) error
	List(ctx context.Context, filter models.UserFilter) ([]*models.User, error)
}

// UsersHandler implements rpc.UserServiceServer. Access rules are
// enforced by the interceptor; handlers only read the principal to record
// who acted.
type UsersHandler struct {
	users  UserManager
	logger logging.Logger
}

func NewUsersHandler(um UserManager, l logging.Logger) *UsersHandler {
	return &UsersHandler{users: um, logger: l.With("module", "users_handler")}
}

func (h *UsersHandler) CreateUser(ctx context.Context, req *rpc.CreateUserRequest) (*rpc.User, error) {
	u, err := h.users.Create(ctx, actorID(ctx), services.CreateUserInput{
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
		DisplayName:          req.DisplayName,
		Role:                 req.Role,
	})
	if err != nil {
		return nil, h.fail(ctx, "CreateUser", err)
	}
	return toRPCUser(u), nil
}

func (h *UsersHandler) GetUser(ctx context.Context, req *rpc.GetUserRequest) (*rpc.User, error) {
	u, err := h.users.Get(ctx, req.Id)
	if err != nil {
		return nil, h.fail(ctx, "GetUser", err)
	}
	return toRPCUser(u), nil
}

func (h *UsersHandler) UpdateUser(ctx context.Context, req *rpc.UpdateUserRequest) (*rpc.User, error) {
	u, err := h.users.Update(ctx, actorID(ctx), req.Id, services.UpdateUserInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		return nil, h.fail(ctx, "UpdateUser", err)
	}
	return toRPCUser(u), nil
}

func (h *UsersHandler) ChangeRole(ctx context.Context, req *rpc.ChangeRoleRequest) (*rpc.User, error) {
	u, err := h.users.ChangeRole(ctx, actorID(ctx), req.Id, req.Role)
	if err != nil {
		return nil, h.fail(ctx, "ChangeRole", err)
	}
	return toRPCUser(u), nil
}

func (h *UsersHandler) ChangePassword(ctx context.Context, req *rpc.ChangePasswordRequest) (*rpc.User, error) {
	u, err := h.users.ChangePassword(ctx, actorID(ctx), req.Id, services.ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return nil, h.fail(ctx, "ChangePassword", err)
	}
	return toRPCUser(u), nil
}

func (h *UsersHandler) DeleteUser(ctx context.Context, req *rpc.DeleteUserRequest) (*rpc.DeleteUserResponse, error) {
	if err := h.users.SoftDelete(ctx, actorID(ctx), req.Id); err != nil {
		return nil, h.fail(ctx, "DeleteUser", err)
	}
	return &rpc.DeleteUserResponse{}, nil
}

func (h *UsersHandler) ListUsers(ctx context.Context, req *rpc.ListUsersRequest) (*rpc.ListUsersResponse, error) {
	users, err := h.users.List(ctx, models.UserFilter{Email: req.Email, DisplayName: req.DisplayName})
	if err != nil {
		return nil, h.fail(ctx, "ListUsers", err)
	}

	resp := &rpc.ListUsersResponse{Users: make([]*rpc.User, 0, len(users))}
	for _, u := range users {
		resp.Users = append(resp.Users, toRPCUser(u))
	}
	return resp, nil
}

// fail logs unexpected errors and converts err to a status.
func (h *UsersHandler) fail(ctx context.Context, method string, err error) error {
	st := grpcerr.FromError(err)
	if grpcerr.Reason(st) == grpcerr.ReasonInternal || errors.Is(err, common.ErrUnavailable) {
		h.logger.Error(ctx, "request failed", "method", method, "error", err)
	}
	return st
}

func actorID(ctx context.Context) string {
	if p, ok := authz.PrincipalFromContext(ctx); ok {
		return p.Subject
	}
	return ""
}

func toRPCUser(u *models.User) *rpc.User {
	return &rpc.User{
		Id:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role.String(),
		Version:     u.Version,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
