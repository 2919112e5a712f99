package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-listings/internal/config"
	"github.com/iliyamo/estate-listings/internal/logger"
)

// gcraScript implements the generic cell rate algorithm.  The key holds the
// theoretical arrival time in unix ms.  Returns {allowed, remaining, retry_ms}.
var gcraScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local emission = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local tat = tonumber(redis.call('GET', KEYS[1]) or now)
if tat < now then tat = now end

local next_tat = tat + emission
local allow_at = next_tat - emission * burst
if now < allow_at then
	return {0, 0, allow_at - now}
end

redis.call('SET', KEYS[1], next_tat, 'PX', math.max(ttl, next_tat - now))
return {1, math.floor((now - allow_at) / emission), 0}
`)

// decision is one limiter verdict.
type decision struct {
	allowed    bool
	remaining  int64
	retryAfter time.Duration
}

// bucket admits Capacity requests per key, then one more every
// RefillInterval/RefillTokens.
type bucket struct {
	rdb      *redis.Client
	emission time.Duration
	burst    int
	ttl      time.Duration
}

func newBucket(cfg config.RateLimitConfig, rdb *redis.Client) bucket {
	emission := cfg.RefillInterval / time.Duration(max(cfg.RefillTokens, 1))
	if emission < time.Millisecond {
		emission = time.Millisecond
	}
	return bucket{rdb: rdb, emission: emission, burst: max(cfg.Capacity, 1), ttl: cfg.TTL}
}

func (b bucket) take(ctx context.Context, key string, now time.Time) (decision, error) {
	res, err := gcraScript.Run(ctx, b.rdb, []string{key},
		now.UnixMilli(), b.emission.Milliseconds(), b.burst, b.ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return decision{}, err
	}
	if len(res) != 3 {
		return decision{}, redis.Nil
	}
	return decision{
		allowed:    res[0] == 1,
		remaining:  res[1],
		retryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// RateLimit enforces cfg per key.  Disabled config or a nil client is a
// pass-through and Redis errors fail open.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	b := newBucket(cfg, rdb)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			d, err := b.take(c.Request().Context(), key, time.Now())
			if err != nil {
				logger.From(c, log).Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(b.burst))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.remaining, 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if d.allowed {
				return next(c)
			}
			secs := int64((d.retryAfter + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.FormatInt(secs, 10))
			logger.From(c, log).Info("rate limited", zap.String("key", key), zap.Duration("retry_after", d.retryAfter))
			return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, please try again later.")
		}
	}
}

// rateKey scopes the bucket.  Strategy names combine "ip", "user" and
// "route" with underscores; anything unrecognised uses all three.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	segments := map[string]func() string{
		"ip": func() string {
			if ip := c.RealIP(); ip != "" {
				return ip
			}
			return "unknown"
		},
		"user":  func() string { return userID(c) },
		"route": func() string { return c.Request().Method + " " + c.Path() },
	}
	parts := strings.Split(strings.ToLower(cfg.KeyStrategy), "_")
	for _, p := range parts {
		if segments[p] == nil {
			parts = []string{"ip", "user", "route"}
			break
		}
	}
	key := []string{cfg.Prefix}
	for _, p := range parts {
		key = append(key, p, segments[p]())
	}
	return strings.Join(key, ":")
}
