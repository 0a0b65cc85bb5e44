// Package httperr writes the JSON error bodies of the HTTP APIs and maps
// sentinel errors of package common to status codes.
package httperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/streamflow/internal/common"
)

// Body is the error payload: {"detail": "..."}.
type Body struct {
	Detail string `json:"detail"`
}

// Status returns the HTTP status and client-facing detail for err.
// Authentication failures are reported without their cause.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrUnauthenticated),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrAccountDisabled):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrPermissionDenied):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, common.ErrAlreadyExists):
		return http.StatusConflict, "already exists"
	case errors.Is(err, common.ErrInvalidArgument):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrUnavailable):
		return http.StatusServiceUnavailable, "temporarily unavailable"
	}
	return http.StatusInternalServerError, "internal error"
}

// Write maps err and writes it as a JSON body.
func Write(w http.ResponseWriter, err error) {
	code, detail := Status(err)
	WriteJSON(w, code, Body{Detail: detail})
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// FromStatus turns a status code and detail received from a peer back into
// the matching sentinel error.
func FromStatus(code int, detail string) error {
	var sentinel error
	switch code {
	case http.StatusUnauthorized:
		sentinel = common.ErrUnauthenticated
	case http.StatusForbidden:
		sentinel = common.ErrPermissionDenied
	case http.StatusNotFound:
		sentinel = common.ErrorNotFound
	case http.StatusConflict:
		sentinel = common.ErrAlreadyExists
	case http.StatusBadRequest:
		sentinel = common.ErrInvalidArgument
	case http.StatusTooManyRequests, http.StatusServiceUnavailable,
		http.StatusBadGateway, http.StatusGatewayTimeout:
		sentinel = common.ErrUnavailable
	default:
		sentinel = common.ErrorInternal
	}
	detail = strings.TrimPrefix(detail, sentinel.Error()+": ")
	if _, generic := Status(sentinel); detail == "" || detail == generic || detail == sentinel.Error() {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, detail)
}
