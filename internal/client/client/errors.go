package client

import "errors"

var (
	ErrNotLoggedIn     = errors.New("not logged in")
	ErrMalformedToken  = errors.New("malformed session token")
	ErrUnexpectedReply = errors.New("unexpected reply")
)
