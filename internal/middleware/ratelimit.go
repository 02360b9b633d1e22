package middleware

import (
    "log/slog"
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/aswinmurali/servicehub/internal/config"
)

// tokenBucket refills capacity-bounded tokens per interval and takes one.
// Returns {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])
    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    local elapsed = math.max(0, now_ms - last_refill)
    local intervals = math.floor(elapsed / interval_ms)
    if intervals > 0 then
        tokens = math.min(capacity, tokens + (intervals * refill_tokens))
        last_refill = last_refill + (intervals * interval_ms)
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
    end

    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)
    return { allowed, tokens, retry_after_ms }
`)

// RateLimit throttles the credential endpoints (login, registration,
// password reset) with a Redis token bucket.  Without Redis, or when
// disabled, it lets everything through; Redis errors fail open.
func RateLimit(cfg config.RateLimitConfig, rdb *redis.Client, logger *slog.Logger) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if logger == nil {
        logger = slog.Default()
    }
    logger = logger.With("component", "ratelimit")

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := rateKey(cfg, c)
            args := []interface{}{
                time.Now().UnixMilli(),
                cfg.Capacity,
                cfg.RefillTokens,
                cfg.RefillInterval.Milliseconds(),
                int64(cfg.TTL / time.Second),
            }
            vals, err := tokenBucket.Run(c.Request().Context(), rdb, []string{key}, args...).Int64Slice()
            if err != nil || len(vals) != 3 {
                logger.Warn("rate limit check failed", "key", key, "err", err)
                return next(c)
            }
            allowed, remaining, retryMs := vals[0] == 1, vals[1], vals[2]

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if allowed {
                return next(c)
            }

            secs := int(math.Ceil(float64(retryMs) / 1000.0))
            h.Set("Retry-After", strconv.Itoa(secs))
            logger.Info("rate limited", "key", key, "retry_ms", retryMs)
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "Too many attempts. Please wait and try again.",
                "retry_after": secs,
            })
        }
    }
}

// rateKey builds the bucket key from the configured strategy.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    sub := subjectID(c)
    route := c.Request().Method + " " + c.Path()

    parts := []string{cfg.Prefix}
    switch strings.ToLower(cfg.KeyStrategy) {
    case "ip":
        parts = append(parts, "ip", ip)
    case "subject":
        parts = append(parts, "sub", sub)
    case "route":
        parts = append(parts, "route", route)
    case "ip_subject":
        parts = append(parts, "ip", ip, "sub", sub)
    case "subject_route":
        parts = append(parts, "sub", sub, "route", route)
    case "ip_route":
        parts = append(parts, "ip", ip, "route", route)
    default:
        parts = append(parts, "ip", ip, "sub", sub, "route", route)
    }
    return strings.Join(parts, ":")
}
