package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

const UserServiceName = "users.v1.UserService"

const (
	UserServiceCreateUser     = "/" + UserServiceName + "/CreateUser"
	UserServiceGetUser        = "/" + UserServiceName + "/GetUser"
	UserServiceUpdateUser     = "/" + UserServiceName + "/UpdateUser"
	UserServiceChangeRole     = "/" + UserServiceName + "/ChangeRole"
	UserServiceChangePassword = "/" + UserServiceName + "/ChangePassword"
	UserServiceDeleteUser     = "/" + UserServiceName + "/DeleteUser"
	UserServiceListUsers      = "/" + UserServiceName + "/ListUsers"
)

// User is the public view of an identity. It never carries the password
// hash.
type User struct {
	Id          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateUserRequest struct {
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"passwordConfirmation"`
	DisplayName          string `json:"displayName,omitempty"`
	Role                 string `json:"role,omitempty"`
}

func (r *CreateUserRequest) GetRole() string {
	if r == nil {
		return ""
	}
	return r.Role
}

type GetUserRequest struct {
	Id string `json:"id"`
}

func (r *GetUserRequest) GetId() string {
	if r == nil {
		return ""
	}
	return r.Id
}

// UpdateUserRequest changes profile fields; nil fields are left as is.
type UpdateUserRequest struct {
	Id          string  `json:"id"`
	Email       *string `json:"email,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
}

func (r *UpdateUserRequest) GetId() string {
	if r == nil {
		return ""
	}
	return r.Id
}

type ChangeRoleRequest struct {
	Id   string `json:"id"`
	Role string `json:"role"`
}

func (r *ChangeRoleRequest) GetId() string {
	if r == nil {
		return ""
	}
	return r.Id
}

type ChangePasswordRequest struct {
	Id              string `json:"id"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r *ChangePasswordRequest) GetId() string {
	if r == nil {
		return ""
	}
	return r.Id
}

type DeleteUserRequest struct {
	Id string `json:"id"`
}

func (r *DeleteUserRequest) GetId() string {
	if r == nil {
		return ""
	}
	return r.Id
}

type DeleteUserResponse struct{}

type ListUsersRequest struct {
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

type ListUsersResponse struct {
	Users []*User `json:"users"`
}

// UserServiceServer is implemented by the users service.
type UserServiceServer interface {
	CreateUser(context.Context, *CreateUserRequest) (*User, error)
	GetUser(context.Context, *GetUserRequest) (*User, error)
	UpdateUser(context.Context, *UpdateUserRequest) (*User, error)
	ChangeRole(context.Context, *ChangeRoleRequest) (*User, error)
	ChangePassword(context.Context, *ChangePasswordRequest) (*User, error)
	DeleteUser(context.Context, *DeleteUserRequest) (*DeleteUserResponse, error)
	ListUsers(context.Context, *ListUsersRequest) (*ListUsersResponse, error)
}

var UserServiceDesc = grpc.ServiceDesc{
	ServiceName: UserServiceName,
	HandlerType: (*UserServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(UserServiceName, "CreateUser", func(srv any, ctx context.Context, in *CreateUserRequest) (*User, error) {
			return srv.(UserServiceServer).CreateUser(ctx, in)
		}),
		unaryMethod(UserServiceName, "GetUser", func(srv any, ctx context.Context, in *GetUserRequest) (*User, error) {
			return srv.(UserServiceServer).GetUser(ctx, in)
		}),
		unaryMethod(UserServiceName, "UpdateUser", func(srv any, ctx context.Context, in *UpdateUserRequest) (*User, error) {
			return srv.(UserServiceServer).UpdateUser(ctx, in)
		}),
		unaryMethod(UserServiceName, "ChangeRole", func(srv any, ctx context.Context, in *ChangeRoleRequest) (*User, error) {
			return srv.(UserServiceServer).ChangeRole(ctx, in)
		}),
		unaryMethod(UserServiceName, "ChangePassword", func(srv any, ctx context.Context, in *ChangePasswordRequest) (*User, error) {
			return srv.(UserServiceServer).ChangePassword(ctx, in)
		}),
		unaryMethod(UserServiceName, "DeleteUser", func(srv any, ctx context.Context, in *DeleteUserRequest) (*DeleteUserResponse, error) {
			return srv.(UserServiceServer).DeleteUser(ctx, in)
		}),
		unaryMethod(UserServiceName, "ListUsers", func(srv any, ctx context.Context, in *ListUsersRequest) (*ListUsersResponse, error) {
			return srv.(UserServiceServer).ListUsers(ctx, in)
		}),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "users/v1/users.json",
}

func RegisterUserServiceServer(s grpc.ServiceRegistrar, srv UserServiceServer) {
	s.RegisterService(&UserServiceDesc, srv)
}

// UserServiceClient calls the users service. Authenticated calls need a
// bearer in the outgoing context, see WithBearer.
type UserServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewUserServiceClient(cc grpc.ClientConnInterface) *UserServiceClient {
	return &UserServiceClient{cc: cc}
}

func (c *UserServiceClient) CreateUser(ctx context.Context, in *CreateUserRequest, opts ...grpc.CallOption) (*User, error) {
	out := new(User)
	if err := c.cc.Invoke(ctx, UserServiceCreateUser, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *UserServiceClient) GetUser(ctx context.Context, in *GetUserRequest, opts ...grpc.CallOption) (*User, error) {
	out := new(User)
	if err := c.cc.Invoke(ctx, UserServiceGetUser, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *UserServiceClient) UpdateUser(ctx context.Context, in *UpdateUserRequest, opts ...grpc.CallOption) (*User, error) {
	out := new(User)
	if err := c.cc.Invoke(ctx, UserServiceUpdateUser, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *UserServiceClient) ChangeRole(ctx context.Context, in *ChangeRoleRequest, opts ...grpc.CallOption) (*User, error) {
	out := new(User)
	if err := c.cc.Invoke(ctx, UserServiceChangeRole, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *UserServiceClient) ChangePassword(ctx context.Context, in *ChangePasswordRequest, opts ...grpc.CallOption) (*User, error) {
	out := new(User)
	if err := c.cc.Invoke(ctx, UserServiceChangePassword, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *UserServiceClient) DeleteUser(ctx context.Context, in *DeleteUserRequest, opts ...grpc.CallOption) (*DeleteUserResponse, error) {
	out := new(DeleteUserResponse)
	if err := c.cc.Invoke(ctx, UserServiceDeleteUser, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *UserServiceClient) ListUsers(ctx context.Context, in *ListUsersRequest, opts ...grpc.CallOption) (*ListUsersResponse, error) {
	out := new(ListUsersResponse)
	if err := c.cc.Invoke(ctx, UserServiceListUsers, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}
