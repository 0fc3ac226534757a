// ABOUTME: Per-caller token bucket rate limiting built on golang.org/x/time/rate
// ABOUTME: Keys callers by subject, presented token or client IP and sweeps idle entries

package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/2389/fanpulse/internal/auth"
)

// DefaultCleanupInterval is how often idle limiters are swept.
const DefaultCleanupInterval = 5 * time.Minute

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	Rate            rate.Limit // requests per second per caller
	Burst           int
	CleanupInterval time.Duration

	// KeyFunc identifies the caller. Defaults to CallerKey.
	KeyFunc func(*http.Request) string
	Logger  *slog.Logger
}

type callerLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter holds one token bucket per caller.
type RateLimiter struct {
	config  RateLimiterConfig
	logger  *slog.Logger
	mu      sync.Mutex
	callers map[string]*callerLimiter
	now     func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a RateLimiter and starts its background sweep.
// Call Stop to end the sweep.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = CallerKey
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rl := &RateLimiter{
		config:  cfg,
		logger:  logger.With("component", "ratelimit"),
		callers: make(map[string]*callerLimiter),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the background sweep. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware rejects requests beyond the caller's budget with 429.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.config.KeyFunc(r)
		if !rl.Allow(key) {
			rl.logger.Warn("rate limit exceeded", "caller", key, "path", r.URL.Path)
			writeRateLimitResponse(w, rl.config.Rate)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Allow consumes one token for key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiterFor(key).AllowN(rl.now(), 1)
}

// CallerCount returns the number of tracked callers.
func (rl *RateLimiter) CallerCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.callers)
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if cl, ok := rl.callers[key]; ok {
		cl.lastAccess = rl.now()
		return cl.limiter
	}
	cl := &callerLimiter{
		limiter:    rate.NewLimiter(rl.config.Rate, rl.config.Burst),
		lastAccess: rl.now(),
	}
	rl.callers[key] = cl
	return cl.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops callers idle for more than two sweep intervals.
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, cl := range rl.callers {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.callers, key)
		}
	}
}

// CallerKey identifies the caller of r for rate limiting.
func CallerKey(r *http.Request) string {
	if id := auth.FromContext(r.Context()); id != nil && id.Subject != "" {
		return "subject:" + id.Subject
	}
	if rest, ok := strings.CutPrefix(r.URL.Path, "/mcp/"); ok && rest != "" {
		token, _, _ := strings.Cut(rest, "/")
		return "token:" + token
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return "token:" + token
	}
	if token, err := auth.BearerToken(r.Header.Get("Authorization")); err == nil {
		return "token:" + token
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse writes 429 with a Retry-After estimate for one token.
func writeRateLimitResponse(w http.ResponseWriter, limit rate.Limit) {
	retryAfter := 1
	if limit > 0 {
		retryAfter = int(math.Ceil(1.0 / float64(limit)))
		if retryAfter < 1 {
			retryAfter = 1
		}
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "rate_limit_exceeded",
		"message": "too many requests, retry later",
	})
}
