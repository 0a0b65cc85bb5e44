// Package client talks to the streamflow services on behalf of authctl.
//
// Session operations (login, logout, password change) go to the auth
// service's HTTP API; account registration and profile lookups go to the
// users service over gRPC. Failures come back as the sentinel errors of
// package common, so callers can match them with errors.Is regardless of
// the transport that produced them.
package client
