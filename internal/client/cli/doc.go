// Package cli provides authctl, the interactive command-line client of
// the streamflow auth services.
//
// It wires configuration, the HTTP and gRPC clients of package client and
// a small REPL. The session token lives only in memory; quitting the REPL
// without "logout" leaves the token valid until it expires.
//
// Commands:
//   - register        create an account (as admin when logged in as one)
//   - login / logout  open or revoke a session
//   - whoami          show the profile of the logged-in user
//   - passwd          change the password of the logged-in user
//   - token           print the current bearer token
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
