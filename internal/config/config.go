package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "strings"
    "time"
)

// Identity modes.
const (
    ModeLocal = "local" // self-hosted users table + HS256 tokens
    ModeOAuth = "oauth" // remote backend-as-a-service over OAuth2
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Values that only one identity mode needs are
// left zero in the other mode.
type Config struct {
    Env     string // application environment (e.g. "dev", "prod")
    Port    string // HTTP port the client shell listens on
    SiteURL string // public base URL, used for provider redirect targets

    IdentityMode string // ModeLocal or ModeOAuth

    DBUser        string // role store database username
    DBPass        string // database password (optional)
    DBHost        string // database host address
    DBPort        string // database port number
    DBName        string // database name
    DBAutoMigrate bool   // apply the embedded schema on start

    JWTSecret      string // HS256 secret; optional in oauth mode (claims are then read unverified)
    AccessTTLMin   int    // access token time-to-live in minutes (local mode)
    RefreshTTLDays int    // refresh token time-to-live in days (local mode)
    BcryptCost     int    // bcrypt cost for password hashing (local mode)

    OAuthClientID     string
    OAuthClientSecret string
    OAuthAuthURL      string
    OAuthTokenURL     string
    OAuthAPIURL       string
    OAuthScopes       []string

    StatePrefix string // namespace of the persisted local state in Redis
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    cfg := Config{
        Env:          must("APP_ENV"),  // environment (dev/test/prod)
        Port:         must("APP_PORT"), // port to bind the HTTP shell
        SiteURL:      must("SITE_URL"), // where the provider sends the actor back
        IdentityMode: strings.ToLower(envStr("IDENTITY_MODE", ModeLocal)),

        DBUser:        must("DB_USER"),      // role store user
        DBPass:        os.Getenv("DB_PASS"), // empty allowed
        DBHost:        must("DB_HOST"),
        DBPort:        must("DB_PORT"),
        DBName:        must("DB_NAME"),
        DBAutoMigrate: envBool("DB_AUTO_MIGRATE", false),

        JWTSecret:   os.Getenv("JWT_SECRET"),
        StatePrefix: envStr("STATE_PREFIX", "svc"),
    }

    switch cfg.IdentityMode {
    case ModeLocal:
        cfg.JWTSecret = must("JWT_SECRET")
        cfg.AccessTTLMin = mustInt("ACCESS_TOKEN_TTL_MIN")
        cfg.RefreshTTLDays = mustInt("REFRESH_TOKEN_TTL_DAYS")
        cfg.BcryptCost = mustInt("BCRYPT_COST")
    case ModeOAuth:
        cfg.OAuthClientID = must("OAUTH_CLIENT_ID")
        cfg.OAuthClientSecret = os.Getenv("OAUTH_CLIENT_SECRET") // public clients have none
        cfg.OAuthAuthURL = must("OAUTH_AUTH_URL")
        cfg.OAuthTokenURL = must("OAUTH_TOKEN_URL")
        cfg.OAuthAPIURL = must("OAUTH_API_URL")
        cfg.OAuthScopes = splitList(envStr("OAUTH_SCOPES", "openid,email,profile"))
    default:
        log.Fatalf("invalid IDENTITY_MODE %q (want %s or %s)", cfg.IdentityMode, ModeLocal, ModeOAuth)
    }
    return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}

func splitList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}

// envStr returns the value of k, or d when unset or empty.
func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

// envBool accepts the usual spellings of true and false.  Anything else
// yields d.
func envBool(k string, d bool) bool {
    switch strings.ToLower(os.Getenv(k)) {
    case "1", "true", "yes", "on":
        return true
    case "0", "false", "no", "off":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    n, err := strconv.Atoi(os.Getenv(k))
    if err != nil {
        return d
    }
    return n
}

func envDur(k string, d time.Duration) time.Duration {
    dur, err := time.ParseDuration(os.Getenv(k))
    if err != nil {
        return d
    }
    return dur
}

func positiveInt(n, d int) int {
    if n < 1 {
        return d
    }
    return n
}

func positiveDur(v, d time.Duration) time.Duration {
    if v <= 0 {
        return d
    }
    return v
}
