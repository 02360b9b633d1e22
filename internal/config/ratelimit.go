package config

import (
    "log"
    "strings"
    "time"
)

// RateLimitConfig tunes the token bucket in front of the credential
// endpoints (sign-in, registration, password reset).  Capacity attempts
// are allowed in a burst; RefillTokens come back every RefillInterval.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
    TTL            time.Duration // idle bucket lifetime in Redis
    KeyStrategy    string        // one of KeyStrategies
    Prefix         string
    Debug          bool // log every bucket decision
}

// KeyStrategies lists the supported bucket key layouts.  An unknown
// strategy falls back to ip_route, which keys a credential attempt by the
// caller's address and the endpoint.
var KeyStrategies = []string{"ip", "subject", "route", "ip_subject", "subject_route", "ip_route", "ip_subject_route"}

func LoadRateLimitConfig() RateLimitConfig {
    c := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       positiveInt(envInt("RATE_LIMIT_CAPACITY", 10), 1),
        RefillTokens:   positiveInt(envInt("RATE_LIMIT_REFILL_TOKENS", 1), 1),
        RefillInterval: positiveDur(envDur("RATE_LIMIT_REFILL_INTERVAL", 6*time.Second), time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    strings.ToLower(envStr("RATE_LIMIT_KEY_STRATEGY", "ip_route")),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl:auth"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }

    known := false
    for _, s := range KeyStrategies {
        if s == c.KeyStrategy {
            known = true
            break
        }
    }
    if !known {
        log.Printf("unknown RATE_LIMIT_KEY_STRATEGY %q, using ip_route", c.KeyStrategy)
        c.KeyStrategy = "ip_route"
    }

    // a bucket that expires before it refills would hand out a fresh burst
    if floor := 5 * c.RefillInterval; c.TTL < floor {
        c.TTL = floor
    }
    return c
}
