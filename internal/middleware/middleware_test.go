package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/seat-registry/internal/auth"
	"github.com/iliyamo/seat-registry/internal/config"
	"github.com/iliyamo/seat-registry/internal/utils"
)

const testSecret = "test-secret"

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		id, ok := auth.IdentityFrom(c.Request().Context())
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.String(http.StatusOK, id.String())
	}, JWTAuth(testSecret))

	tok, err := utils.NewAccessToken(testSecret, "GALICE", 5)
	require.NoError(t, err)
	other, err := utils.NewAccessToken("another-secret", "GALICE", 5)
	require.NoError(t, err)

	rec := serve(e, http.MethodGet, "/me", tok.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GALICE", rec.Body.String())

	for name, raw := range map[string]string{"missing": "", "garbage": "not-a-jwt", "wrong secret": other.Token} {
		rec := serve(e, http.MethodGet, "/me", raw)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, name)
		assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`, name)
	}
}

func TestTokenBucket(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "test:rl",
	}
	e := echo.New()
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		NewTokenBucket(cfg, rdb, zap.NewNop()))

	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/ping", "").Code)
	assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/ping", "").Code)

	rec := serve(e, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"code":"too_many_requests"`)
}

func TestTokenBucket_DisabledOrRedisDown(t *testing.T) {
	e := echo.New()
	h := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

	e.GET("/off", h, NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil, zap.NewNop()))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()
	e.GET("/down", h, NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1, Prefix: "rl"}, rdb, zap.NewNop()))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/off", "").Code)
		assert.Equal(t, http.StatusNoContent, serve(e, http.MethodGet, "/down", "").Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/seats", nil)
	req.RemoteAddr = "10.0.0.9:555"
	req = req.WithContext(auth.WithIdentity(req.Context(), "GBOB"))
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/seats")

	cfg := config.RateLimitConfig{Prefix: "rl"}
	cfg.KeyStrategy = "identity"
	assert.Equal(t, "rl:id:GBOB", buildRateKey(cfg, c))
	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.9", buildRateKey(cfg, c))
	cfg.KeyStrategy = ""
	assert.Equal(t, "rl:ip:10.0.0.9:id:GBOB:route:POST /v1/seats", buildRateKey(cfg, c))
}

func cacheConfig(maxBody int) config.CacheConfig {
	return config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "test:cache",
		MaxBodyBytes: maxBody,
	}
}

func TestRedisCache(t *testing.T) {
	rdb := newRedis(t)
	cfg := cacheConfig(1 << 16)
	calls := 0
	e := echo.New()
	e.GET("/meta", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"name": "Hall"})
	}, NewRedisCache(cfg, rdb, "default", zap.NewNop()))
	e.GET("/missing", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusPreconditionFailed, echo.Map{"code": "not_initialized"})
	}, NewRedisCache(cfg, rdb, "default", zap.NewNop()))

	first := serve(e, http.MethodGet, "/meta", "")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := serve(e, http.MethodGet, "/meta", "")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Header().Get(echo.HeaderContentType), second.Header().Get(echo.HeaderContentType))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	// Non-200 responses are never stored.
	serve(e, http.MethodGet, "/missing", "")
	rec := serve(e, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestRedisCache_ScopedPerInstance(t *testing.T) {
	rdb := newRedis(t)
	cfg := cacheConfig(1 << 16)
	server := func(scope, name string) *echo.Echo {
		e := echo.New()
		e.GET("/v1/registry", func(c echo.Context) error {
			return c.JSON(http.StatusOK, echo.Map{"name": name})
		}, NewRedisCache(cfg, rdb, scope, zap.NewNop()))
		return e
	}
	a := server("hall-a", "hall-A")
	b := server("hall-b", "hall-B")

	serve(a, http.MethodGet, "/v1/registry", "")
	assert.Equal(t, "HIT", serve(a, http.MethodGet, "/v1/registry", "").Header().Get("X-Cache"))

	rec := serve(b, http.MethodGet, "/v1/registry", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"name":"hall-B"}`, rec.Body.String())
	rec = serve(b, http.MethodGet, "/v1/registry", "")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"name":"hall-B"}`, rec.Body.String())
}

func TestRedisCache_OversizedBodyNotStored(t *testing.T) {
	rdb := newRedis(t)
	long := strings.Repeat("N", 200)
	e := echo.New()
	e.GET("/meta", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"name": long})
	}, NewRedisCache(cacheConfig(64), rdb, "default", zap.NewNop()))

	for i := 0; i < 2; i++ {
		rec := serve(e, http.MethodGet, "/meta", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
		assert.JSONEq(t, `{"name":"`+long+`"}`, rec.Body.String())
	}
	keys, err := rdb.Keys(context.Background(), "test:cache:*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestTokenBucket_Refills(t *testing.T) {
	rdb := newRedis(t)
	b := tokenBucket{rdb: rdb, cfg: config.RateLimitConfig{
		Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute,
	}}
	ctx := context.Background()
	now := time.UnixMilli(1_000_000)

	st, err := b.take(ctx, "rl:k", now)
	require.NoError(t, err)
	assert.True(t, st.Allowed)
	assert.Equal(t, int64(0), st.Remaining)

	st, err = b.take(ctx, "rl:k", now.Add(400*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, st.Allowed)
	assert.Equal(t, 600*time.Millisecond, st.Retry)

	st, err = b.take(ctx, "rl:k", now.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, st.Allowed)
}
