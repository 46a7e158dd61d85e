package server

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long a client's bucket survives without requests.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter implements a token bucket per client IP.
type RateLimiter struct {
	limiters  map[string]*clientLimiter
	mu        sync.Mutex
	rateLimit rate.Limit // requests per second
	burstSize int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rateLimit rate.Limit, burstSize int) *RateLimiter {
	return &RateLimiter{
		limiters:  make(map[string]*clientLimiter),
		rateLimit: rateLimit,
		burstSize: burstSize,
		idleTTL:   limiterIdleTTL,
		now:       time.Now,
	}
}

// GetLimiter returns the limiter for ip, creating it on first use. Buckets idle
// for longer than the TTL are dropped, at most once per TTL.
func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= rl.idleTTL {
		for key, cl := range rl.limiters {
			if now.Sub(cl.lastSeen) >= rl.idleTTL {
				delete(rl.limiters, key)
			}
		}
		rl.lastSweep = now
	}

	cl, exists := rl.limiters[ip]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rateLimit, rl.burstSize)}
		rl.limiters[ip] = cl
	}
	cl.lastSeen = now

	return cl.limiter
}

// size reports the number of tracked clients.
func (rl *RateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// clientIP strips the port from RemoteAddr. middleware.RealIP replaces
// RemoteAddr with a bare address when a forwarding header is present.
func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

// NewRateLimitMiddleware allows perMinute requests per client IP, with bursts
// up to the same amount.
func NewRateLimitMiddleware(perMinute int, logger *slog.Logger) func(http.Handler) http.Handler {
	return rateLimitMiddleware(NewRateLimiter(rate.Limit(float64(perMinute)/60.0), perMinute), logger)
}

func rateLimitMiddleware(limiter *RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r.RemoteAddr)

			if !limiter.GetLimiter(ip).Allow() {
				logger.Warn("Webhook rate limit exceeded", "ip", ip, "path", r.URL.Path)
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestLogger logs one http_request line per request.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("http_request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"request_id", middleware.GetReqID(r.Context()),
					"duration_ms", time.Since(start).Milliseconds())
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
