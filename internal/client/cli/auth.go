package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/client/client"
	"github.com/dmitrijs2005/streamflow/internal/common"
	"github.com/dmitrijs2005/streamflow/internal/role"
	"github.com/dmitrijs2005/streamflow/internal/rpc"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// readSecret reads a password and returns it as a string, wiping the
// terminal buffer.
func (a *App) readSecret(prompt string) (string, error) {
	pw, err := getPassword(a.out, prompt)
	if err != nil {
		return "", err
	}
	defer clear(pw)
	return string(pw), nil
}

// Register creates an account. When an admin is logged in the request
// carries their token, which allows choosing the role.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	name, err := getSimpleText(a.reader, "Enter display name (optional)", a.out)
	if err != nil {
		return err
	}
	password, err := a.readSecret("Enter password")
	if err != nil {
		return err
	}
	confirm, err := a.readSecret("Repeat password")
	if err != nil {
		return err
	}

	req := &rpc.CreateUserRequest{
		Email:                email,
		Password:             password,
		PasswordConfirmation: confirm,
		DisplayName:          name,
	}

	var token string
	if a.isLoggedIn() {
		token = a.session.Token
		if r, _ := role.Parse(a.session.Role); r == role.Admin {
			if req.Role, err = getSimpleText(a.reader, "Enter role (empty for default)", a.out); err != nil {
				return err
			}
		}
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.users.Register(ctx, token, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Registered %s as %s (%s)\n", u.Email, u.Id, u.Role)
	return nil
}

// Login prompts for credentials and opens a session.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := a.readSecret("Enter password")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	s, err := a.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	a.session = s
	fmt.Fprintf(a.out, "Logged in as %s, session expires at %s\n", s.UserID, s.ExpiresAt.Local().Format(time.RFC3339))
	return nil
}

// Logout revokes the current token. The local session is dropped even if
// the server already considers the token invalid.
func (a *App) Logout(ctx context.Context) error {
	if a.session == nil {
		return client.ErrNotLoggedIn
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	err := a.auth.Logout(ctx, a.session.Token)
	if err != nil && !errors.Is(err, common.ErrUnauthenticated) {
		return err
	}
	a.session = nil
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// WhoAmI prints the profile of the logged-in user.
func (a *App) WhoAmI(ctx context.Context) error {
	if !a.isLoggedIn() {
		return client.ErrNotLoggedIn
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	u, err := a.users.GetUser(ctx, a.session.Token, a.session.UserID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "id:      %s\nemail:   %s\nname:    %s\nrole:    %s\nversion: %d\n",
		u.Id, u.Email, u.DisplayName, u.Role, u.Version)
	return nil
}

// ChangePassword changes the password of the logged-in user.
func (a *App) ChangePassword(ctx context.Context) error {
	if !a.isLoggedIn() {
		return client.ErrNotLoggedIn
	}

	current, err := a.readSecret("Current password")
	if err != nil {
		return err
	}
	next, err := a.readSecret("New password")
	if err != nil {
		return err
	}
	confirm, err := a.readSecret("Repeat new password")
	if err != nil {
		return err
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	if _, err := a.auth.ChangePassword(ctx, a.session.Token, a.session.UserID, client.PasswordChange{
		CurrentPassword: current,
		NewPassword:     next,
		ConfirmPassword: confirm,
	}); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed")
	return nil
}

// Token prints the bearer token of the current session.
func (a *App) Token(context.Context) error {
	if !a.isLoggedIn() {
		return client.ErrNotLoggedIn
	}
	fmt.Fprintln(a.out, a.session.Token)
	return nil
}
