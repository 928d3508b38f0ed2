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

    "github.com/iliyamo/seat-registry/internal/config"
)

// takeToken refills the bucket in KEYS[1] for the whole intervals elapsed
// since its last refill, then takes one token if any is left.
// ARGV: now_ms, capacity, refill_tokens, interval_ms, ttl_seconds.
// Returns {allowed (0|1), tokens left, retry after in ms}.
var takeToken = redis.NewScript(`
local now_ms      = tonumber(ARGV[1])
local capacity    = tonumber(ARGV[2])
local refill      = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl         = tonumber(ARGV[5])

local state  = redis.call('HMGET', KEYS[1], 'tokens', 'last_ms')
local tokens = tonumber(state[1])
local last   = tonumber(state[2])
if tokens == nil or last == nil then
  tokens, last = capacity, now_ms
end

if interval_ms > 0 and refill > 0 then
  local n = math.floor(math.max(0, now_ms - last) / interval_ms)
  if n > 0 then
    tokens = math.min(capacity, tokens + n * refill)
    last = last + n * interval_ms
  end
end

local allowed, retry = 0, 0
if tokens > 0 then
  allowed, tokens = 1, tokens - 1
else
  retry = math.max(0, interval_ms - (now_ms - last))
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'last_ms', last)
redis.call('EXPIRE', KEYS[1], ttl)
return {allowed, tokens, retry}
`)

// bucketState is the outcome of one takeToken call.
type bucketState struct {
    Allowed   bool
    Remaining int64
    Retry     time.Duration
}

type tokenBucket struct {
    cfg config.RateLimitConfig
    rdb *redis.Client
}

func (b tokenBucket) take(ctx context.Context, key string, now time.Time) (bucketState, error) {
    ttl := int64(b.cfg.TTL / time.Second)
    if ttl < 1 {
        ttl = 1
    }
    vals, err := takeToken.Run(ctx, b.rdb, []string{key},
        now.UnixMilli(), b.cfg.Capacity, b.cfg.RefillTokens, b.cfg.RefillInterval.Milliseconds(), ttl,
    ).Int64Slice()
    if err != nil {
        return bucketState{}, err
    }
    if len(vals) != 3 {
        return bucketState{}, redis.Nil
    }
    return bucketState{
        Allowed:   vals[0] == 1,
        Remaining: vals[1],
        Retry:     time.Duration(vals[2]) * time.Millisecond,
    }, nil
}

// NewTokenBucket limits requests with a token bucket kept in Redis, so all
// server replicas share one budget per key.  Redis errors let the request
// through.  A nil client or a disabled config yields a pass-through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    bucket := tokenBucket{cfg: cfg, rdb: rdb}

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            st, err := bucket.take(c.Request().Context(), key, time.Now())
            if err != nil {
                log.Warn("ratelimit: redis error", zap.String("key", key), zap.Error(err))
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(st.Remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if st.Allowed {
                return next(c)
            }

            secs := int((st.Retry + time.Second - 1) / time.Second)
            h.Set("Retry-After", strconv.Itoa(secs))
            if cfg.Debug {
                log.Info("ratelimit: blocked", zap.String("key", key), zap.Duration("retry", st.Retry))
            }
            return c.JSON(http.StatusTooManyRequests, map[string]any{
                "error":       "rate limit exceeded",
                "code":        "too_many_requests",
                "retry_after": secs,
            })
        }
    }
}

// buildRateKey joins the parts selected by cfg.KeyStrategy.  "identity"
// is the verified caller, so the identity strategies only discriminate
// behind JWTAuth.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    id := currentIdentity(c)
    route := c.Request().Method + " " + c.Path()

    parts := []string{cfg.Prefix}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "identity":
        parts = append(parts, "id", id)
    case "route":
        parts = append(parts, "route", route)
    case "ip_identity":
        parts = append(parts, "ip", ip, "id", id)
    case "ip_route":
        parts = append(parts, "ip", ip, "route", route)
    case "identity_route":
        parts = append(parts, "id", id, "route", route)
    default:
        parts = append(parts, "ip", ip, "id", id, "route", route)
    }
    return strings.Join(parts, ":")
}
