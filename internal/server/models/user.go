// Package models holds the server-side data types shared by repositories,
// services and transports.
package models

import (
	"time"

	"github.com/dmitrijs2005/streamflow/internal/role"
)

// User is an identity as stored by the owning users service and mirrored
// by replicas. PasswordHash is a bcrypt hash and never leaves the server
// side through an API response.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Role         role.Role
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// IsDeleted reports whether the identity has been soft-deleted.
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// UserFilter narrows List results. Empty fields match everything.
type UserFilter struct {
	Email       string
	DisplayName string
}
