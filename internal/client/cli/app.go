package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/client/client"
	"github.com/dmitrijs2005/streamflow/internal/client/config"
	"github.com/dmitrijs2005/streamflow/internal/rpc"
)

// AuthAPI is the part of the auth service the CLI uses.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*client.Session, error)
	Logout(ctx context.Context, token string) error
	ChangePassword(ctx context.Context, token, id string, in client.PasswordChange) (*rpc.User, error)
}

// UsersAPI is the part of the users service the CLI uses.
type UsersAPI interface {
	Register(ctx context.Context, token string, in *rpc.CreateUserRequest) (*rpc.User, error)
	GetUser(ctx context.Context, token, id string) (*rpc.User, error)
	Close() error
}

type App struct {
	config  *config.Config
	auth    AuthAPI
	users   UsersAPI
	session *client.Session
	reader  *bufio.Reader
	out     io.Writer
	now     func() time.Time
}

func NewApp(c *config.Config) (*App, error) {
	users, err := client.DialUsers(c.UsersAddr)
	if err != nil {
		return nil, fmt.Errorf("users client: %w", err)
	}

	return &App{
		config: c,
		auth:   client.NewAuthClient(c.AuthURL, c.Timeout),
		users:  users,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
		now:    time.Now,
	}, nil
}

// Run starts the REPL and blocks until the user quits or stdin ends.
func (a *App) Run(ctx context.Context) error {
	defer a.users.Close()
	fmt.Fprintln(a.out, "streamflow authctl (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader)
	return nil
}

func (a *App) isLoggedIn() bool {
	return a.session != nil && !a.session.Expired(a.now())
}

func (a *App) status() string {
	switch {
	case a.session == nil:
		return "anonymous"
	case a.session.Expired(a.now()):
		return a.session.UserID + " (expired)"
	}
	return a.session.UserID + " " + a.session.Role
}

// withTimeout bounds a single remote call by the configured timeout.
func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.Timeout)
}
