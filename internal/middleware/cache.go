package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/hex"
    "encoding/json"
    "errors"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/seat-registry/internal/config"
)

// cachedResponse is the Redis value of one cached response.
type cachedResponse struct {
    Status      int    `json:"status"`
    ContentType string `json:"content_type"`
    Body        []byte `json:"body"`
}

// bodyRecorder tees the response body into buf until it exceeds limit.
// Once overflowed the response is served normally but never cached.
type bodyRecorder struct {
    http.ResponseWriter
    status     int
    buf        bytes.Buffer
    limit      int
    overflowed bool
}

func (w *bodyRecorder) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
    if !w.overflowed {
        if w.limit > 0 && w.buf.Len()+len(b) > w.limit {
            w.overflowed = true
            w.buf.Reset()
        } else {
            w.buf.Write(b)
        }
    }
    return w.ResponseWriter.Write(b)
}

// cacheKey scopes the entry to one registry instance, so deployments that
// share a Redis never serve each other's metadata.
func cacheKey(cfg config.CacheConfig, scope string, c echo.Context) string {
    r := c.Request()
    var parts []string
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        parts = []string{c.Path()}
    case "method_route":
        parts = []string{r.Method, c.Path()}
    case "method_route_query":
        parts = []string{r.Method, c.Path(), r.URL.RawQuery}
    default: // "route_query"
        parts = []string{c.Path(), r.URL.RawQuery}
    }
    sum := sha1.Sum([]byte(strings.Join(parts, "\n")))
    return cfg.Prefix + ":" + scope + ":" + hex.EncodeToString(sum[:])
}

// NewRedisCache replays successful responses from Redis for the methods in
// cfg.Methods.  Only mount it on routes whose body cannot change once
// written, such as the registry metadata; seat ownership must always be
// read live.  scope is the registry instance the route serves.  Responses
// other than 200, and bodies above cfg.MaxBodyBytes, are not stored.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, scope string, log *zap.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 5 * time.Minute
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
                return next(c)
            }
            key := cacheKey(cfg, scope, c)

            hit, err := lookup(c.Request().Context(), rdb, key)
            switch {
            case err == nil:
                c.Response().Header().Set("X-Cache", "HIT")
                return c.Blob(hit.Status, hit.ContentType, hit.Body)
            case !errors.Is(err, redis.Nil):
                log.Warn("cache: lookup", zap.String("key", key), zap.Error(err))
            }

            rec := &bodyRecorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if rec.status != http.StatusOK || rec.overflowed {
                return nil
            }

            payload, err := json.Marshal(cachedResponse{
                Status:      rec.status,
                ContentType: c.Response().Header().Get(echo.HeaderContentType),
                Body:        rec.buf.Bytes(),
            })
            if err != nil {
                log.Warn("cache: encode", zap.String("key", key), zap.Error(err))
                return nil
            }
            if err := rdb.SetEx(context.Background(), key, payload, ttl).Err(); err != nil {
                log.Warn("cache: store", zap.String("key", key), zap.Error(err))
            }
            return nil
        }
    }
}

// lookup returns redis.Nil on a miss and for entries that do not decode.
func lookup(ctx context.Context, rdb *redis.Client, key string) (cachedResponse, error) {
    var hit cachedResponse
    bs, err := rdb.Get(ctx, key).Bytes()
    if err != nil {
        return hit, err
    }
    if err := json.Unmarshal(bs, &hit); err != nil || hit.Status == 0 {
        return hit, redis.Nil
    }
    return hit, nil
}
