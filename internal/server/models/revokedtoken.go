package models

import "time"

// RevokedToken is one revocation ledger row. ExpiresAt is the natural
// expiry of the token; once it passes the row may be pruned.
type RevokedToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	RevokedAt time.Time
}
