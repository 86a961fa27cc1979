package observability

import (
	"strings"
	"unicode/utf8"
)

// Limits for request-derived log fields. Routes are chi patterns, user ids
// are ULID-prefixed, methods are standard verbs; anything longer arrived
// from a hostile client.
const (
	routeFieldLimit   = 180
	methodFieldLimit  = 10
	userFieldLimit    = 64
	defaultFieldLimit = 256
)

// sanitizeString strips control bytes and caps the length so a crafted
// header value cannot break the JSON log stream.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = defaultFieldLimit
	}
	value = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, value)
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}

// SanitizeRoute prepares a chi route pattern for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, routeFieldLimit)
}

// SanitizeMethod prepares the HTTP verb for logging.
func SanitizeMethod(method string) string {
	return sanitizeString(method, methodFieldLimit)
}

// SanitizeUserID caps customer ids before they reach the log stream.
func SanitizeUserID(uid string) string {
	if uid == "" {
		return ""
	}
	return sanitizeString(uid, userFieldLimit)
}
