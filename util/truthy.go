package util

import "strings"

// Truthy reports whether s is an affirmative flag value such as
// "true", "1", "yes", "y" or "on", ignoring case and whitespace.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "on":
		return true
	default:
		return false
	}
}
