package config

import "time"

// GuardConfig tunes the route guards.  The defaults are the production
// values; tests shorten them.
type GuardConfig struct {
    RoleTimeout      time.Duration // GUARD_ROLE_TIMEOUT, bound on a remote role lookup
    RedirectDebounce time.Duration // GUARD_REDIRECT_DEBOUNCE, public-only redirect window
}

func LoadGuardConfig() GuardConfig {
    return GuardConfig{
        RoleTimeout:      positiveDur(envDur("GUARD_ROLE_TIMEOUT", 5*time.Second), 5*time.Second),
        RedirectDebounce: positiveDur(envDur("GUARD_REDIRECT_DEBOUNCE", time.Second), time.Second),
    }
}
