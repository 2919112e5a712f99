package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/estate-listings/internal/apperr"
	"github.com/iliyamo/estate-listings/internal/config"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func serve(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "203.0.113.7:5555"
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_BlocksAfterCapacity(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1,
		RefillInterval: time.Minute, TTL: 15 * time.Minute,
		KeyStrategy: "ip_route", Prefix: "rl:test",
	}
	e := echo.New()
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		_ = c.NoContent(apperr.Status(err))
	}
	e.POST("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RateLimit(cfg, rdb, nil))
	e.POST("/auth/register", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RateLimit(cfg, rdb, nil))

	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/auth/login").Code)
	rec := serve(e, http.MethodPost, "/auth/login")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = serve(e, http.MethodPost, "/auth/login")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Buckets are per route.
	assert.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/auth/register").Code)
}

func TestBucket_RefillsAtEmissionRate(t *testing.T) {
	_, rdb := newRedis(t)
	b := newBucket(config.RateLimitConfig{Capacity: 3, RefillTokens: 1, RefillInterval: 10 * time.Second, TTL: time.Minute}, rdb)
	ctx := context.Background()
	t0 := time.UnixMilli(1_700_000_000_000)

	for want := int64(2); want >= 0; want-- {
		d, err := b.take(ctx, "k", t0)
		require.NoError(t, err)
		assert.True(t, d.allowed)
		assert.Equal(t, want, d.remaining)
	}
	d, err := b.take(ctx, "k", t0.Add(4*time.Second))
	require.NoError(t, err)
	assert.False(t, d.allowed)
	assert.Equal(t, 6*time.Second, d.retryAfter)

	d, err = b.take(ctx, "k", t0.Add(10*time.Second))
	require.NoError(t, err)
	assert.True(t, d.allowed)
	assert.Equal(t, int64(0), d.remaining)
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "203.0.113.7:5555"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/auth/login")

	cases := []struct{ strategy, want string }{
		{"ip", "rl:ip:203.0.113.7"},
		{"ip_route", "rl:ip:203.0.113.7:route:POST /auth/login"},
		{"user", "rl:user:anon"},
		{"", "rl:ip:203.0.113.7:user:anon:route:POST /auth/login"},
		{"bogus", "rl:ip:203.0.113.7:user:anon:route:POST /auth/login"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: tc.strategy}, c), tc.strategy)
	}
}

func TestRateLimit_NilClientPassesThrough(t *testing.T) {
	e := echo.New()
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1}
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RateLimit(cfg, nil, nil))

	for range 3 {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/").Code)
	}
}

func TestResponseCache_HitAfterMiss(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, TTL: 30 * time.Second, Prefix: "listings", MaxBodyBytes: 1 << 20}
	calls := 0
	e := echo.New()
	e.GET("/listings/search", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, []string{c.QueryParam("q")})
	}, ResponseCache(cfg, rdb, nil))

	first := serve(e, http.MethodGet, "/listings/search?q=villa")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := serve(e, http.MethodGet, "/listings/search?q=villa")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Contains(t, second.Header().Get(echo.HeaderContentType), "application/json")
	assert.Equal(t, 1, calls)

	other := serve(e, http.MethodGet, "/listings/search?q=barn")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)

	reordered := serve(e, http.MethodGet, "/listings/search?limit=5&q=villa")
	assert.Equal(t, "MISS", reordered.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", serve(e, http.MethodGet, "/listings/search?q=villa&limit=5").Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)

	mr.FastForward(31 * time.Second)
	assert.Equal(t, "MISS", serve(e, http.MethodGet, "/listings/search?q=villa").Header().Get("X-Cache"))
	assert.Equal(t, 4, calls)
}

func TestResponseCache_SkipsNonOK(t *testing.T) {
	_, rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "listings"}
	calls := 0
	e := echo.New()
	e.GET("/listings/popular", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"message": "down"})
	}, ResponseCache(cfg, rdb, nil))

	serve(e, http.MethodGet, "/listings/popular")
	rec := serve(e, http.MethodGet, "/listings/popular")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	require.Equal(t, 2, calls)
}
