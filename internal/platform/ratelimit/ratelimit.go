// Package ratelimit caps requests per client using cache counters.
package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/cache"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/config"
	httpmw "github.com/MahdiBaghbani/ledgerclient-go/internal/platform/http/middleware"
	"github.com/MahdiBaghbani/ledgerclient-go/internal/platform/logutil"
)

const keyPrefix = "ratelimit:"

// Limiter applies a fixed-window request budget per key.
type Limiter struct {
	counter cache.Counter
	limit   int64
	window  time.Duration
	log     *slog.Logger
}

// New creates a limiter from the [sandbox.ratelimit] settings.
func New(counter cache.Counter, cfg config.RateLimitConfig, logger *slog.Logger) *Limiter {
	return &Limiter{
		counter: counter,
		limit:   cfg.RequestsPerWindow,
		window:  cfg.Window(),
		log:     logutil.NoopIfNil(logger),
	}
}

// Result contains the rate limit check result.
type Result struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

// Allow counts one request for key.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	count, resetAt, err := l.counter.Increment(ctx, keyPrefix+key, 1, l.window)
	if err != nil {
		return nil, err
	}
	return &Result{
		Allowed:   count <= l.limit,
		Remaining: max(l.limit-count, 0),
		ResetAt:   resetAt,
	}, nil
}

// Check reports the current state for key without counting a request.
func (l *Limiter) Check(ctx context.Context, key string) (*Result, error) {
	count, err := l.counter.GetCount(ctx, keyPrefix+key)
	if err != nil {
		return nil, err
	}
	return &Result{
		Allowed:   count < l.limit,
		Remaining: max(l.limit-count, 0),
	}, nil
}

// Reset clears the budget for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	return l.counter.Reset(ctx, keyPrefix+key)
}

// KeyFromRequest returns the client IP from RemoteAddr. Forwarding headers
// are ignored; the sandbox is not deployed behind a proxy.
func KeyFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware enforces the budget. Rejected requests get Retry-After and are
// written by reject with 429. When the counter backend fails the request is
// let through.
func (l *Limiter) Middleware(reject httpmw.RejectFunc) func(http.Handler) http.Handler {
	if reject == nil {
		reject = func(w http.ResponseWriter, r *http.Request, status int) {
			http.Error(w, http.StatusText(status), status)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := KeyFromRequest(r)
			res, err := l.Allow(r.Context(), key)
			if err != nil {
				l.log.Warn("rate limit check failed", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(l.limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retry := int(math.Ceil(time.Until(res.ResetAt).Seconds()))
				h.Set("Retry-After", strconv.Itoa(max(retry, 1)))
				reject(w, r, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
