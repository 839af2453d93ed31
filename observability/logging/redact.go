package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces the value of any field not on the allowlist.
const RedactedValue = "[REDACTED]"

// Keys farmd may log verbatim. Credentials and anything caller supplied
// outside this set go through MaskField.
var plainKeys = map[string]struct{}{
	"service":    {},
	"env":        {},
	"message":    {},
	"severity":   {},
	"timestamp":  {},
	"error":      {},
	"request_id": {},
	"method":     {},
	"path":       {},
	"status":     {},
	"remote":     {},
	"pool":       {},
	"owner":      {},
	"root":       {},
	"type":       {},
}

// IsAllowlisted reports whether key may be logged without redaction.
func IsAllowlisted(key string) bool {
	_, ok := plainKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns key with its value replaced by RedactedValue unless the
// key is allowlisted or the value is empty.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
