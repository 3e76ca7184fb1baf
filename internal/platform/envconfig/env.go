package envconfig

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Get returns the value of the requested environment variable or the supplied fallback when empty.
func Get(name string, fallback string) string {
	if value, ok := os.LookupEnv(name); ok && value != "" {
		return value
	}
	return fallback
}

// GetInt parses an integer variable, falling back when unset or malformed.
func GetInt(name string, fallback int) int {
	raw := strings.TrimSpace(Get(name, ""))
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return val
}

// GetDuration parses a time.Duration variable such as "5m", falling back when unset or malformed.
func GetDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(Get(name, ""))
	if raw == "" {
		return fallback
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return val
}

// Validate validates a struct using validator tags.
func Validate(v any) error {
	return validate.Struct(v)
}
