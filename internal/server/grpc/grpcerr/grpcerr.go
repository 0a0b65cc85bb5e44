// Package grpcerr translates between the sentinel errors of package common
// and gRPC statuses. Every status produced here carries an ErrorInfo detail
// whose reason clients can switch on.
package grpcerr

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/streamflow/internal/common"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Domain is the ErrorInfo domain of every status built by this package.
const Domain = "streamflow"

const (
	ReasonUnauthenticated  = "UNAUTHENTICATED"
	ReasonPermissionDenied = "PERMISSION_DENIED"
	ReasonNotFound         = "NOT_FOUND"
	ReasonAlreadyExists    = "ALREADY_EXISTS"
	ReasonInvalidArgument  = "INVALID_ARGUMENT"
	ReasonUnavailable      = "UNAVAILABLE"
	ReasonInternal         = "INTERNAL"
)

type mapping struct {
	sentinel error
	code     codes.Code
	reason   string
	message  string // fixed client-facing message; empty means err.Error()
}

// Order matters: authentication failures are matched first so that their
// cause never leaks into the message.
var mappings = []mapping{
	{common.ErrUnauthenticated, codes.Unauthenticated, ReasonUnauthenticated, "unauthenticated"},
	{common.ErrInvalidToken, codes.Unauthenticated, ReasonUnauthenticated, "unauthenticated"},
	{common.ErrInvalidCredentials, codes.Unauthenticated, ReasonUnauthenticated, "unauthenticated"},
	{common.ErrAccountDisabled, codes.Unauthenticated, ReasonUnauthenticated, "unauthenticated"},
	{common.ErrPermissionDenied, codes.PermissionDenied, ReasonPermissionDenied, "permission denied"},
	{common.ErrorNotFound, codes.NotFound, ReasonNotFound, "not found"},
	{common.ErrAlreadyExists, codes.AlreadyExists, ReasonAlreadyExists, "already exists"},
	{common.ErrInvalidArgument, codes.InvalidArgument, ReasonInvalidArgument, ""},
	{common.ErrUnavailable, codes.Unavailable, ReasonUnavailable, "temporarily unavailable"},
}

// FromError converts err into a gRPC status error. Errors that already are
// statuses pass through; unknown errors become Internal.
func FromError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}

	for _, m := range mappings {
		if errors.Is(err, m.sentinel) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			return newStatus(m.code, m.reason, msg)
		}
	}
	return newStatus(codes.Internal, ReasonInternal, "internal error")
}

func newStatus(code codes.Code, reason, msg string) error {
	st := status.New(code, msg)
	withInfo, err := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: Domain})
	if err != nil {
		return st.Err()
	}
	return withInfo.Err()
}

// Reason returns the ErrorInfo reason attached to err, if any.
func Reason(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == Domain {
			return info.GetReason()
		}
	}
	return ""
}

// ToError converts a status received from a peer back into the matching
// sentinel, keeping the status message for context.
func ToError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var sentinel error
	switch st.Code() {
	case codes.Unauthenticated:
		sentinel = common.ErrUnauthenticated
	case codes.PermissionDenied:
		sentinel = common.ErrPermissionDenied
	case codes.NotFound:
		sentinel = common.ErrorNotFound
	case codes.AlreadyExists:
		sentinel = common.ErrAlreadyExists
	case codes.InvalidArgument:
		sentinel = common.ErrInvalidArgument
	case codes.Unavailable, codes.DeadlineExceeded:
		sentinel = common.ErrUnavailable
	case codes.Canceled:
		return context.Canceled
	default:
		sentinel = common.ErrorInternal
	}

	if st.Message() == sentinel.Error() {
		return sentinel
	}
	return errorWithMessage{sentinel: sentinel, msg: st.Message()}
}

type errorWithMessage struct {
	sentinel error
	msg      string
}

func (e errorWithMessage) Error() string { return e.msg }
func (e errorWithMessage) Unwrap() error { return e.sentinel }
