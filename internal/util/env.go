// Package util provides environment parsing and ID helpers shared across components.
package util

import (
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// ParseBoolEnv parses a boolean environment variable with a default value.
// Accepts: true/1/yes/on and false/0/no/off (case-insensitive). Invalid values return default.
func ParseBoolEnv(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		slog.Warn("ParseBoolEnv: invalid boolean value, using default", "key", key, "value", val, "default", defaultValue)
		return defaultValue
	}
}

// NewUserID generates a unique user ID with "u_" prefix.
func NewUserID() string {
	return "u_" + uuid.NewString()
}

// NewMessageID generates a unique message ID with "m_" prefix.
func NewMessageID() string {
	return "m_" + uuid.NewString()
}

// NewGoalID generates a unique financial goal ID with "g_" prefix.
func NewGoalID() string {
	return "g_" + uuid.NewString()
}

// NewExpensesID generates a unique monthly expenses ID with "e_" prefix.
func NewExpensesID() string {
	return "e_" + uuid.NewString()
}
