package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

var sensitiveFragments = []string{"secret", "password", "token", "authorization", "credential", "dsn"}

// isSensitive reports whether values logged under key must be masked. Basket
// tokens are public identities and stay visible.
func isSensitive(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	if k == "basket_token" || k == "basket" {
		return false
	}
	for _, fragment := range sensitiveFragments {
		if strings.Contains(k, fragment) {
			return true
		}
	}
	return false
}

// MaskBearer keeps the scheme of an Authorization header and drops the
// credential.
func MaskBearer(header string) string {
	scheme, credential, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || strings.TrimSpace(credential) == "" {
		if strings.TrimSpace(header) == "" {
			return header
		}
		return RedactedValue
	}
	return scheme + " " + RedactedValue
}

func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString || !isSensitive(attr.Key) {
		return attr
	}
	value := attr.Value.String()
	switch {
	case value == "":
		return attr
	case strings.EqualFold(attr.Key, "authorization"):
		return slog.String(attr.Key, MaskBearer(value))
	default:
		return slog.String(attr.Key, RedactedValue)
	}
}
