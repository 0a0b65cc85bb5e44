// Package role defines the closed set of account roles and the single
// place where legacy role spellings are translated.
package role

import (
	"errors"
	"strings"
)

// ErrUnknownRole is returned by Parse for names outside the role set.
var ErrUnknownRole = errors.New("unknown role")

// Role is an account role. The zero value is not a valid role.
type Role uint8

const (
	Free Role = iota + 1
	Premium
	Admin
)

var names = map[Role]string{
	Free:    "free",
	Premium: "premium",
	Admin:   "admin",
}

// aliases maps every accepted spelling onto a role. Older services used
// Spanish names and a generic "client" role for regular accounts.
var aliases = map[string]Role{
	"free":          Free,
	"premium":       Premium,
	"admin":         Admin,
	"administrator": Admin,
	"administrador": Admin,
	"client":        Free,
	"cliente":       Free,
}

// Parse resolves a role name or alias, case-insensitively.
func Parse(s string) (Role, error) {
	r, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, ErrUnknownRole
	}
	return r, nil
}

// ParseOrDefault parses s and falls back to def when s is empty.
func ParseOrDefault(s string, def Role) (Role, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return Parse(s)
}

func (r Role) String() string {
	if n, ok := names[r]; ok {
		return n
	}
	return "unknown"
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := names[r]
	return ok
}

// IsPrivileged reports whether r may act on other subjects.
func (r Role) IsPrivileged() bool {
	return r == Admin
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrUnknownRole
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
