package auth

import (
	"sync"
	"time"
)

// Blacklist is a thread-safe in-memory set of revoked token hashes, used
// as a positive cache in front of the revocation ledger. Each entry is
// kept until the token's natural expiry; after that the token is rejected
// by Verify anyway.
type Blacklist struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

func NewBlacklist() *Blacklist {
	return &Blacklist{entries: make(map[string]time.Time)}
}

// Add records tokenHash as revoked until expiresAt.
func (b *Blacklist) Add(tokenHash string, expiresAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[tokenHash] = expiresAt
}

// Contains reports whether tokenHash is cached as revoked.
func (b *Blacklist) Contains(tokenHash string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.entries[tokenHash]
	return ok
}

// Cleanup removes entries whose expiry is at or before now and returns
// how many were removed.
func (b *Blacklist) Cleanup(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for hash, exp := range b.entries {
		if !now.Before(exp) {
			delete(b.entries, hash)
			removed++
		}
	}
	return removed
}

func (b *Blacklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
