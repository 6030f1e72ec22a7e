package featureflags

import (
	"os"
	"strings"
)

// Known flags. Each is read from FLAG_<NAME>.
const (
	// PredictionCache serves repeated prediction reads from memory
	PredictionCache = "prediction_cache"
	// Keepalive lets the agent re-probe the session periodically
	Keepalive = "keepalive"
)

var defaults = map[string]bool{
	PredictionCache: true,
	Keepalive:       true,
}

// Enabled reports a flag's value. Flags are read from env as FLAG_<NAME>=true/1/yes/on
// or false/0/no/off (case-insensitive); anything else falls back to the flag's default.
func Enabled(name string) bool {
	return EnabledOr(name, defaults[name])
}

// EnabledOr is Enabled with an explicit default for unset or unparsable values
func EnabledOr(name string, def bool) bool {
	v := os.Getenv("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
