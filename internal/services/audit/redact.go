package audit

import "strings"

// RedactedMarker replaces the value of every sensitive key in stored snapshots.
const RedactedMarker = "[REDACTED]"

var sensitiveKeys = map[string]bool{
	"password":         true,
	"password_hash":    true,
	"new_password":     true,
	"current_password": true,
	"token":            true,
	"access_token":     true,
	"refresh_token":    true,
	"secret":           true,
	"client_secret":    true,
	"api_key":          true,
	"otp":              true,
}

// IsSensitive reports whether values stored under key must be redacted.
// Matching is case-insensitive.
func IsSensitive(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

// Redact returns a copy of values with every sensitive key's value replaced by
// RedactedMarker. Keys are never dropped. Nested maps and slices of maps are
// redacted recursively. A nil map stays nil.
func Redact(values map[string]any) map[string]any {
	if values == nil {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		if IsSensitive(k) {
			out[k] = RedactedMarker
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return Redact(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = redactValue(item)
		}
		return out
	default:
		return v
	}
}
