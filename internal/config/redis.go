package config

// Redis holds the persisted local state (session mirror, role cache,
// dashboard path, finalization markers) and the rate limiter buckets.
// When the server cannot be reached at startup NewRedisClient returns nil;
// callers then keep local state in memory and disable rate limiting.

import (
    "context"
    "crypto/tls"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisOptions reads the connection settings:
//   REDIS_ADDR – host:port (REDIS_HOST + REDIS_PORT take precedence)
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
func RedisOptions() *redis.Options {
    addr := envStr("REDIS_ADDR", "localhost:6379")
    if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
        addr = host + ":" + port
    }
    opts := &redis.Options{
        Addr:     addr,
        Password: envStr("REDIS_PASSWORD", ""),
        DB:       envInt("REDIS_DB", 0),
    }
    if v := envStr("REDIS_TLS", ""); strings.EqualFold(v, "true") || v == "1" {
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    return opts
}

// NewRedisClient connects with RedisOptions and pings the server.  It
// returns nil when the ping fails.
func NewRedisClient() *redis.Client {
    client := redis.NewClient(RedisOptions())
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}
