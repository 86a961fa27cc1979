package textutil

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Caps applied to client-supplied metadata maps (order metadata travels on
// every status event fanned out to listeners, so one request must not be
// able to bloat the stream).
const (
	maxMapEntries    = 16
	maxMapValueBytes = 256
)

// NormalizeStringMap prepares a client-supplied string map for storage and
// event fan-out: keys and values are trimmed, entries with blank keys are
// dropped, oversized values are cut at a rune boundary, and only the first
// maxMapEntries keys (in lexical order, so the result is deterministic)
// survive. Returns nil when nothing remains.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}

	normalized := make(map[string]string, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		normalized[key] = clampValue(strings.TrimSpace(value))
	}
	if len(normalized) == 0 {
		return nil
	}

	if len(normalized) > maxMapEntries {
		keys := make([]string, 0, len(normalized))
		for key := range normalized {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys[maxMapEntries:] {
			delete(normalized, key)
		}
	}
	return normalized
}

func clampValue(value string) string {
	if len(value) <= maxMapValueBytes {
		return value
	}
	cut := maxMapValueBytes
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
