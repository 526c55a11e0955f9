package middleware

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL    = 30 * time.Minute
	limiterSweepEvery = 10 * time.Minute
)

const tooManyRequestsBody = `{"title":"Too Many Requests","status":429,"detail":"rate limit exceeded"}`

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// limiterSet hands out one token bucket per key. Buckets idle for longer
// than limiterIdleTTL are dropped by sweep.
type limiterSet[K comparable] struct {
	mu      sync.Mutex
	buckets map[K]*bucket
	rps     rate.Limit
	burst   int
	now     func() time.Time
}

func newLimiterSet[K comparable](rps float64, burst int) *limiterSet[K] {
	return &limiterSet[K]{
		buckets: make(map[K]*bucket),
		rps:     rate.Limit(rps),
		burst:   burst,
		now:     time.Now,
	}
}

func (s *limiterSet[K]) allow(key K) bool {
	s.mu.Lock()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.buckets[key] = b
	}
	b.seen = s.now()
	s.mu.Unlock()

	return b.limiter.Allow()
}

func (s *limiterSet[K]) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-limiterIdleTTL)
	dropped := 0
	for key, b := range s.buckets {
		if b.seen.Before(cutoff) {
			delete(s.buckets, key)
			dropped++
		}
	}
	return dropped
}

func (s *limiterSet[K]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// run sweeps idle buckets until ctx is done.
func (s *limiterSet[K]) run(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-ctx.Done():
			return
		}
	}
}

func tooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	http.Error(w, tooManyRequestsBody, http.StatusTooManyRequests)
}

// clientHost is the host part of r.RemoteAddr, so that reconnects from a new
// source port share the same bucket.
func clientHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitByIP throttles the board and notification websocket upgrades per
// client address. It runs before Auth, so a burst of bad tokens is throttled
// too. RemoteAddr is expected to be rewritten by chi's RealIP.
func RateLimitByIP(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	set := newLimiterSet[string](requestsPerSecond, burst)
	go set.run(ctx)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !set.allow(clientHost(r)) {
				tooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit throttles /api/v1 calls per authenticated user. It is mounted
// after RequireUser; requests that still carry no user pass through.
func RateLimit(ctx context.Context, requestsPerSecond float64, burst int) func(http.Handler) http.Handler {
	set := newLimiterSet[uuid.UUID](requestsPerSecond, burst)
	go set.run(ctx)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if ok && !set.allow(userID) {
				tooManyRequests(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
