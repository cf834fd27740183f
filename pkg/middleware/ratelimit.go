package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/genbaworks/tally/pkg/httputil"
)

// RateLimitConfig tunes a token bucket limiter
type RateLimitConfig struct {
	// RequestsPerWindow is the sustained request budget per window
	RequestsPerWindow int
	// WindowDuration is the refill period
	WindowDuration time.Duration
	// BurstSize is extra headroom on top of the sustained budget
	BurstSize int
}

// DefaultRateLimitConfig returns the general-purpose limit
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
}

// AdminRateLimitConfig returns rate limits for the admin surface. Admin
// operations are few but expensive, so the window is tight.
func AdminRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 30,
		WindowDuration:    time.Minute,
		BurstSize:         5,
	}
}

func (c *RateLimitConfig) capacity() int {
	return c.RequestsPerWindow + c.BurstSize
}

// RateLimiter keeps a token bucket per key in process memory. Use
// DistributedRateLimiter when running more than one instance.
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.RWMutex
}

type bucket struct {
	tokens     int
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
	}
}

func (rl *RateLimiter) bucketFor(key string) *bucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.config.capacity(), lastRefill: time.Now()}
		rl.buckets[key] = b
	}
	return b
}

// refill credits tokens earned since the last refill, capped at capacity.
// Caller holds b.mu.
func (b *bucket) refill(cfg *RateLimitConfig, now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	earned := int(elapsed.Seconds() * float64(cfg.RequestsPerWindow) / cfg.WindowDuration.Seconds())
	if earned <= 0 {
		return
	}
	b.tokens += earned
	if max := cfg.capacity(); b.tokens > max {
		b.tokens = max
	}
	b.lastRefill = now
}

// Allow consumes a token for the key, reporting whether the request is
// within budget
func (rl *RateLimiter) Allow(key string) bool {
	b := rl.bucketFor(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(rl.config, time.Now())
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Remaining returns the key's current token count without consuming one
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.RLock()
	b, ok := rl.buckets[key]
	rl.mu.RUnlock()
	if !ok {
		return rl.config.capacity()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Cleanup drops buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastRefill) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// StartCleanup sweeps idle buckets once per window until ctx is done
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware rate limits HTTP requests keyed by client IP
type RateLimitMiddleware struct {
	limiter *RateLimiter
}

// NewRateLimitMiddleware creates a new rate limit middleware
func NewRateLimitMiddleware(config *RateLimitConfig) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: NewRateLimiter(config),
	}
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + getClientIP(r)

		if !m.limiter.Allow(key) {
			m.writeLimitHeaders(w, 0)
			w.Header().Set("Retry-After", strconv.Itoa(int(m.limiter.config.WindowDuration.Seconds())))
			httputil.WriteTooManyRequests(w, "rate limit exceeded")
			return
		}

		m.writeLimitHeaders(w, m.limiter.Remaining(key))
		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) writeLimitHeaders(w http.ResponseWriter, remaining int) {
	reset := time.Now().Add(m.limiter.config.WindowDuration).Unix()
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limiter.config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
}

// getClientIP resolves the client address, honoring proxy headers
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
