package config

import "strings"

// LogConfig selects the slog handler.
type LogConfig struct {
    Level  string // LOG_LEVEL: debug, info, warn, error
    Format string // LOG_FORMAT: text or json
}

func LoadLogConfig() LogConfig {
    return LogConfig{
        Level:  strings.ToLower(envStr("LOG_LEVEL", "info")),
        Format: strings.ToLower(envStr("LOG_FORMAT", "text")),
    }
}
