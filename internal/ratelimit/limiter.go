package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrRedisUnavailable  = errors.New("redis unavailable")
)

type Scope string

const (
	ScopeIP       Scope = "ip"
	ScopeUser     Scope = "user"
	ScopeEndpoint Scope = "endpoint"
)

type Decision struct {
	Scope      Scope
	Limit      int
	Remaining  int
	Reset      time.Time // When the window resets
	RetryAfter int       // Seconds
	Allowed    bool
}

type LimitConfig struct {
	Rate   int           `yaml:"rate"`
	Window time.Duration `yaml:"window"`
}

// Disabled reports a config that should not be enforced.
func (c LimitConfig) Disabled() bool {
	return c.Rate <= 0 || c.Window <= 0
}

// Policy is the full set of limits applied by the HTTP middleware.
type Policy struct {
	Enabled   bool                   `yaml:"enabled"`
	GlobalIP  LimitConfig            `yaml:"global_ip"`
	User      LimitConfig            `yaml:"user"`
	Endpoints map[string]LimitConfig `yaml:"endpoints"`
}

// Fixed window keyed on first hit: INCR, arm the expiry on the first count,
// and report the remaining TTL in the same round trip.
var windowScript = redis.NewScript(`
	local current = redis.call("INCR", KEYS[1])
	if tonumber(current) == 1 then
		redis.call("PEXPIRE", KEYS[1], ARGV[1])
	end
	local ttl = redis.call("PTTL", KEYS[1])
	return {current, ttl}
`)

type Limiter struct {
	client redis.Scripter
	salt   string
}

func NewLimiter(client redis.Scripter, salt string) *Limiter {
	if salt == "" {
		salt = "default-salt-change-me"
	}
	return &Limiter{client: client, salt: salt}
}

// HashIP creates a privacy-safe hash of the IP
func (l *Limiter) HashIP(ip string) string {
	hash := sha256.Sum256([]byte(ip + l.salt))
	return hex.EncodeToString(hash[:])
}

func (l *Limiter) CheckRateLimit(ctx context.Context, scope Scope, key string, cfg LimitConfig) (*Decision, error) {
	res, err := windowScript.Run(ctx, l.client, []string{key}, cfg.Window.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		return nil, ErrRedisUnavailable
	}
	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if ttl < 0 {
		ttl = cfg.Window
	}

	remaining := cfg.Rate - count
	if remaining < 0 {
		remaining = 0
	}
	retry := int((ttl + time.Second - 1) / time.Second)

	return &Decision{
		Scope:      scope,
		Limit:      cfg.Rate,
		Remaining:  remaining,
		Reset:      time.Now().Add(ttl),
		RetryAfter: retry,
		Allowed:    count <= cfg.Rate,
	}, nil
}
