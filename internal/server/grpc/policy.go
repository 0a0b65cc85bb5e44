package grpc

import (
	"github.com/dmitrijs2005/streamflow/internal/rpc"
	"github.com/dmitrijs2005/streamflow/internal/server/authz"
)

var healthMethods = []string{
	"/grpc.health.v1.Health/Check",
	"/grpc.health.v1.Health/List",
	"/grpc.health.v1.Health/Watch",
}

// UsersPolicy is the access table of the users service.
func UsersPolicy() authz.Policy {
	p := authz.Policy{
		rpc.UserServiceCreateUser:     authz.RuleRegistration,
		rpc.UserServiceGetUser:        authz.RuleSelfOrAdmin,
		rpc.UserServiceUpdateUser:     authz.RuleSelfOrAdmin,
		rpc.UserServiceChangePassword: authz.RuleSelfOrAdmin,
		rpc.UserServiceChangeRole:     authz.RuleAdminOnly,
		rpc.UserServiceDeleteUser:     authz.RuleAdminOnly,
		rpc.UserServiceListUsers:      authz.RuleAdminOnly,
	}
	for _, m := range healthMethods {
		p[m] = authz.RulePublic
	}
	return p
}

// AuthPolicy is the access table of the auth service's gRPC server.
// CheckToken is public: callers already hold the token whose hash they
// ask about.
func AuthPolicy() authz.Policy {
	p := authz.Policy{
		rpc.RevocationServiceCheckToken: authz.RulePublic,
	}
	for _, m := range healthMethods {
		p[m] = authz.RulePublic
	}
	return p
}
