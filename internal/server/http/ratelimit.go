package http

import (
	"context"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/streamflow/internal/httperr"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter throttles requests per client address. Each address gets
// its own token bucket; idle buckets are dropped by Run.
//
// The client address is the TCP peer. X-Forwarded-For is only read when
// the peer is one of the trusted proxies.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	idle    time.Duration
	trusted []netip.Prefix

	mu       sync.Mutex
	limiters map[string]*clientLimiter
	now      func() time.Time
}

type RateLimitOption func(*RateLimiter)

// WithTrustedProxies lists the proxies whose X-Forwarded-For header names
// the client.
func WithTrustedProxies(prefixes ...netip.Prefix) RateLimitOption {
	return func(rl *RateLimiter) {
		rl.trusted = append(rl.trusted, prefixes...)
	}
}

// NewRateLimiter allows perMinute requests per client with the given burst.
// A non-positive perMinute disables limiting.
func NewRateLimiter(perMinute float64, burst int, opts ...RateLimitOption) *RateLimiter {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(perMinute / 60)
	}
	if burst < 1 {
		burst = 1
	}
	rl := &RateLimiter{
		limit:    limit,
		burst:    burst,
		idle:     10 * time.Minute,
		limiters: make(map[string]*clientLimiter),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastAccess = rl.now()
	return cl.limiter
}

// Cleanup removes buckets not used for longer than the idle period and
// returns how many were removed.
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	removed := 0
	for key, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > rl.idle {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lim := rl.get(rl.clientKey(r))

		res := lim.ReserveN(rl.now(), 1)
		if delay := res.DelayFrom(rl.now()); delay > 0 {
			res.CancelAt(rl.now())
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			httperr.WriteJSON(w, http.StatusTooManyRequests, httperr.Body{Detail: "too many requests"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientKey is the peer address, or for a trusted proxy the right-most
// untrusted X-Forwarded-For entry. Entries left of that one are chosen by
// the client and never used.
func (rl *RateLimiter) clientKey(r *http.Request) string {
	peer, err := peerAddr(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	if !rl.isTrusted(peer) {
		return peer.String()
	}

	hops := forwardedFor(r.Header)
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(hops[i])
		if err != nil {
			break
		}
		addr = addr.Unmap()
		if !rl.isTrusted(addr) {
			return addr.String()
		}
	}
	return peer.String()
}

func (rl *RateLimiter) isTrusted(addr netip.Addr) bool {
	for _, p := range rl.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func peerAddr(remote string) (netip.Addr, error) {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.Unmap(), nil
}

func forwardedFor(h http.Header) []string {
	var hops []string
	for _, v := range h.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(v, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	return hops
}
