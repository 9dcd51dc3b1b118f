// IPRateLimiter is ambient abuse protection in front of the credential-scoped
// C5 limiter (internal/ratelimit): a token-bucket-per-client-IP guard that
// trips before a request ever reaches credential identification, so an
// unauthenticated flood of invalid API keys or admin login attempts can't
// burn CPU on crypto/DB lookups. It intentionally does NOT aim for C5's fixed
// "≤ N per calendar minute" budget — a bursty token bucket is the right shape
// here, since the goal is blunting abuse, not enforcing a billed quota.
package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeffreasy/mailgate/internal/api/helpers"
	"github.com/jeffreasy/mailgate/internal/apierr"
)

// IPRateLimiter holds the rate limiters for each visitor.
type IPRateLimiter struct {
	ips    sync.Map
	config LimiterConfig
}

type LimiterConfig struct {
	RPS   rate.Limit
	Burst int
}

// NewIPRateLimiter creates a custom rate limiter.
func NewIPRateLimiter(rps rate.Limit, burst int) *IPRateLimiter {
	i := &IPRateLimiter{
		config: LimiterConfig{
			RPS:   rps,
			Burst: burst,
		},
	}

	go i.cleanupLoop()

	return i
}

// GetLimiter returns the rate limiter for the provided IP address.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	limiter, exists := i.ips.Load(ip)
	if !exists {
		newLimiter := rate.NewLimiter(i.config.RPS, i.config.Burst)
		i.ips.Store(ip, newLimiter)
		return newLimiter
	}
	return limiter.(*rate.Limiter)
}

// cleanupLoop periodically drops the whole per-IP map. A precise LRU isn't
// worth it here: a dropped entry just means that IP's burst allowance resets
// early, which is harmless for an abuse guard.
func (i *IPRateLimiter) cleanupLoop() {
	for {
		time.Sleep(10 * time.Minute)
		i.ips.Range(func(key, value interface{}) bool {
			i.ips.Delete(key)
			return true
		})
	}
}

// Middleware enforces the rate limit per client IP. It must sit behind chi's
// RealIP middleware so r.RemoteAddr already reflects X-Forwarded-For/
// X-Real-IP where the deployment trusts a proxy in front of it.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr

		limiter := i.GetLimiter(ip)
		if !limiter.Allow() {
			slog.Warn("ip rate limit exceeded", "ip", ip, "path", r.URL.Path)
			helpers.RespondAPIError(w, apierr.New(apierr.CodeRateLimitExceeded, "too many requests"))
			return
		}

		next.ServeHTTP(w, r)
	})
}
