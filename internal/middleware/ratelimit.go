package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/technosupport/control-center/internal/metrics"
	"github.com/technosupport/control-center/internal/ratelimit"
	"go.uber.org/zap"
)

type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	policy  atomic.Pointer[ratelimit.Policy]
	logger  *zap.Logger
}

func NewRateLimitMiddleware(l *ratelimit.Limiter, p ratelimit.Policy, logger *zap.Logger) *RateLimitMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &RateLimitMiddleware{limiter: l, logger: logger.Named("ratelimit")}
	m.SetPolicy(p)
	return m
}

// SetPolicy swaps the limits applied to subsequent requests.
func (m *RateLimitMiddleware) SetPolicy(p ratelimit.Policy) {
	m.policy.Store(&p)
	m.logger.Info("rate limit policy applied",
		zap.Bool("enabled", p.Enabled),
		zap.Int("ip_rate", p.GlobalIP.Rate),
		zap.Int("user_rate", p.User.Rate),
	)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// check returns false when the request has been answered.
func (m *RateLimitMiddleware) check(w http.ResponseWriter, r *http.Request, scope ratelimit.Scope, key string, cfg ratelimit.LimitConfig) bool {
	if cfg.Disabled() {
		return true
	}
	decision, err := m.limiter.CheckRateLimit(r.Context(), scope, key, cfg)
	if err != nil {
		// Fail open.
		if errors.Is(err, ratelimit.ErrRedisUnavailable) {
			metrics.RecordRedisError()
		}
		m.logger.Warn("rate limit check failed, allowing", zap.String("scope", string(scope)), zap.Error(err))
		return true
	}

	m.writeRateLimitHeaders(w, decision)
	if !decision.Allowed {
		metrics.RecordRateLimit(string(scope), "blocked")
		http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
		return false
	}
	metrics.RecordRateLimit(string(scope), "allowed")
	return true
}

// GlobalLimiter applies the per-IP and per-endpoint limits.
func (m *RateLimitMiddleware) GlobalLimiter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := m.policy.Load()
		if !p.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		ipHash := m.limiter.HashIP(clientIP(r))
		if !m.check(w, r, ratelimit.ScopeIP, fmt.Sprintf("rl:ip:%s", ipHash), p.GlobalIP) {
			return
		}

		path := r.URL.Path
		if cfg, found := p.Endpoints[path]; found {
			if !m.check(w, r, ratelimit.ScopeEndpoint, fmt.Sprintf("rl:ep:%s:%s", ipHash, path), cfg) {
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// UserLimiter applies the per-user limit; mount it after authentication.
func (m *RateLimitMiddleware) UserLimiter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := m.policy.Load()
		ac, ok := GetAuthContext(r.Context())
		if !p.Enabled || !ok {
			next.ServeHTTP(w, r)
			return
		}
		if !m.check(w, r, ratelimit.ScopeUser, fmt.Sprintf("rl:user:%s", ac.UserID), p.User) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *RateLimitMiddleware) writeRateLimitHeaders(w http.ResponseWriter, d *ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
	if !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter))
	}
}
