package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func TestLoadLocalMode(t *testing.T) {
    for k, v := range map[string]string{
        "APP_ENV": "test", "APP_PORT": "8080", "SITE_URL": "http://localhost:8080",
        "DB_USER": "root", "DB_HOST": "127.0.0.1", "DB_PORT": "3306", "DB_NAME": "svc",
        "JWT_SECRET": "s3cret", "ACCESS_TOKEN_TTL_MIN": "15", "REFRESH_TOKEN_TTL_DAYS": "7", "BCRYPT_COST": "10",
        "DB_AUTO_MIGRATE": "yes", "IDENTITY_MODE": "local", "STATE_PREFIX": "",
    } {
        t.Setenv(k, v)
    }
    cfg := Load()
    assert.Equal(t, ModeLocal, cfg.IdentityMode)
    assert.Equal(t, 15, cfg.AccessTTLMin)
    assert.Equal(t, 7, cfg.RefreshTTLDays)
    assert.True(t, cfg.DBAutoMigrate)
    assert.Equal(t, "svc", cfg.StatePrefix)
    assert.Empty(t, cfg.OAuthClientID)
}

func TestLoadOAuthMode(t *testing.T) {
    for k, v := range map[string]string{
        "APP_ENV": "test", "APP_PORT": "8080", "SITE_URL": "http://localhost:8080",
        "DB_USER": "root", "DB_HOST": "127.0.0.1", "DB_PORT": "3306", "DB_NAME": "svc",
        "IDENTITY_MODE": "OAuth", "OAUTH_CLIENT_ID": "client",
        "OAUTH_AUTH_URL": "https://idp.test/authorize", "OAUTH_TOKEN_URL": "https://idp.test/token",
        "OAUTH_API_URL": "https://idp.test/auth/v1", "OAUTH_SCOPES": "email, profile,,",
    } {
        t.Setenv(k, v)
    }
    cfg := Load()
    assert.Equal(t, ModeOAuth, cfg.IdentityMode)
    assert.Equal(t, []string{"email", "profile"}, cfg.OAuthScopes)
    assert.Zero(t, cfg.BcryptCost)
}

func TestGuardConfigDefaults(t *testing.T) {
    c := LoadGuardConfig()
    assert.Equal(t, 5*time.Second, c.RoleTimeout)
    assert.Equal(t, time.Second, c.RedirectDebounce)

    t.Setenv("GUARD_ROLE_TIMEOUT", "250ms")
    t.Setenv("GUARD_REDIRECT_DEBOUNCE", "-1s")
    c = LoadGuardConfig()
    assert.Equal(t, 250*time.Millisecond, c.RoleTimeout)
    assert.Equal(t, time.Second, c.RedirectDebounce)
}

func TestRateLimitConfigClamps(t *testing.T) {
    t.Setenv("RATE_LIMIT_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
    t.Setenv("RATE_LIMIT_TTL", "1s")
    c := LoadRateLimitConfig()
    assert.Equal(t, 1, c.Capacity)
    assert.Equal(t, 5*time.Minute, c.TTL)
    assert.Equal(t, "ip_route", c.KeyStrategy)
}

func TestRateLimitConfigStrategy(t *testing.T) {
    t.Setenv("RATE_LIMIT_KEY_STRATEGY", "Subject_Route")
    assert.Equal(t, "subject_route", LoadRateLimitConfig().KeyStrategy)

    t.Setenv("RATE_LIMIT_KEY_STRATEGY", "per_cookie")
    c := LoadRateLimitConfig()
    assert.Equal(t, "ip_route", c.KeyStrategy)
    assert.Equal(t, "rl:auth", c.Prefix)
    assert.Equal(t, 10, c.Capacity)
    assert.Equal(t, 6*time.Second, c.RefillInterval)
}

func TestAuditAndLogConfig(t *testing.T) {
    t.Setenv("RABBITMQ_URL", "")
    t.Setenv("AMQP_URL", "amqp://broker:5672/")
    t.Setenv("LOG_FORMAT", "JSON")
    a := LoadAuditConfig()
    assert.Equal(t, "amqp://broker:5672/", a.URL)
    assert.Equal(t, "auth.events", a.Queue)
    assert.Equal(t, "logs", a.LogDir)
    assert.Equal(t, "json", LoadLogConfig().Format)
}

func TestEnvHelpers(t *testing.T) {
    t.Setenv("X_BOOL", "off")
    t.Setenv("X_INT", "nope")
    assert.False(t, envBool("X_BOOL", true))
    assert.Equal(t, 3, envInt("X_INT", 3))
    assert.Equal(t, time.Second, envDur("X_MISSING", time.Second))
    assert.Equal(t, "d", envStr("X_MISSING", "d"))
}

func TestRedisOptions(t *testing.T) {
    t.Setenv("REDIS_HOST", "cache")
    t.Setenv("REDIS_PORT", "6380")
    t.Setenv("REDIS_DB", "2")
    o := RedisOptions()
    assert.Equal(t, "cache:6380", o.Addr)
    assert.Equal(t, 2, o.DB)
    assert.Nil(t, o.TLSConfig)
}
