package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	ChangePassword(ctx context.Context) error
	Token(ctx context.Context) error
}

// runREPL reads commands from reader until EOF, "exit" or "quit", or ctx
// is done. Command errors are printed and the loop continues.
//
//	Not logged in:
//	  - help           show available commands
//	  - register       create an account
//	  - login          open a session
//	  - exit | quit    leave the program
//
//	Logged in:
//	  - whoami         show own profile
//	  - passwd         change own password
//	  - register       create an account (admins may pick the role)
//	  - token          print the bearer token
//	  - logout         revoke the session
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for ctx.Err() == nil {
		printlnFn(fmt.Sprintf("authctl (%s) > ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		var cmdErr error
		switch parts[0] {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: whoami, passwd, register, token, logout, exit")
			} else {
				printlnFn("Available commands: register, login, exit")
			}
		case "register":
			cmdErr = a.Register(ctx)
		case "login":
			cmdErr = a.Login(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "whoami":
			cmdErr = a.WhoAmI(ctx)
		case "passwd":
			cmdErr = a.ChangePassword(ctx)
		case "token":
			cmdErr = a.Token(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", parts[0])
		}

		if cmdErr != nil {
			printlnFn("error:", cmdErr)
		}
	}
}
