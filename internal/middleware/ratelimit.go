package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/village-gacha/internal/apperror"
	"github.com/sakif/village-gacha/internal/response"
)

// RateLimiterConfig is a token bucket per client.
type RateLimiterConfig struct {
	PerMinute       int           // sustained requests per minute; 0 disables limiting
	Burst           int           // bucket size
	CleanupInterval time.Duration // how often idle clients are forgotten
}

// DefaultRateLimiterConfig is 120 req/min with a burst of 60.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		PerMinute:       120,
		Burst:           60,
		CleanupInterval: 5 * time.Minute,
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one limiter per client IP. RealIP must run first so
// r.RemoteAddr is the client behind any proxy.
type RateLimiter struct {
	config RateLimiterConfig
	limit  rate.Limit
	logger *slog.Logger

	mu       sync.Mutex
	limiters map[string]*clientLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter starts a background goroutine that drops idle clients.
// A zero CleanupInterval takes the default. Call Stop when the server
// shuts down.
func NewRateLimiter(config RateLimiterConfig, logger *slog.Logger) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimiterConfig().CleanupInterval
	}
	if config.Burst <= 0 {
		config.Burst = max(config.PerMinute, 1)
	}
	rl := &RateLimiter{
		config:   config,
		limit:    rate.Limit(float64(config.PerMinute) / 60.0),
		logger:   logger,
		limiters: make(map[string]*clientLimiter),
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware answers 429 TOO_MANY_REQUESTS with a Retry-After header once a
// client's bucket is empty.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if rl.config.PerMinute <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !rl.limiterFor(key).Allow() {
			rl.logger.Warn("rate limit exceeded", slog.String("client", key))
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfterSeconds()))
			response.Error(w, apperror.New(apperror.CodeTooManyRequests))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientCount is the number of tracked clients.
func (rl *RateLimiter) ClientCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.config.Burst)}
		rl.limiters[key] = cl
	}
	cl.lastAccess = time.Now()
	return cl.limiter
}

// retryAfterSeconds is the time for one token to refill, at least 1s.
func (rl *RateLimiter) retryAfterSeconds() int {
	return max(int(math.Ceil(1.0/float64(rl.limit))), 1)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup forgets clients idle for more than two cleanup intervals.
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, cl := range rl.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.limiters, key)
		}
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
