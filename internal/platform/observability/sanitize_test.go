package observability

import (
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSanitizeRoute(t *testing.T) {
	cases := []struct {
		name  string
		route string
		want  string
	}{
		{"empty route logs as root", "", "/"},
		{"order routes pass through", "/api/v1/orders/{orderID}:cancel", "/api/v1/orders/{orderID}:cancel"},
		{"newline cannot forge a log line", "/api/v1/orders\n{\"severity\":\"INFO\"}", "/api/v1/orders{\"severity\":\"INFO\"}"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeRoute(tc.route); got != tc.want {
				t.Fatalf("SanitizeRoute(%q) = %q, want %q", tc.route, got, tc.want)
			}
		})
	}
}

func TestSanitizeMethod(t *testing.T) {
	if got := SanitizeMethod(http.MethodPost); got != "POST" {
		t.Fatalf("SanitizeMethod(POST) = %q", got)
	}
	if got := SanitizeMethod("POST\r\nfake"); got != "POSTfake" {
		t.Fatalf("expected control bytes stripped, got %q", got)
	}
}

func TestSanitizeUserID(t *testing.T) {
	uid := "usr_01HZXY9GK4T5R8Q2W3E4R5T6Y7"
	if got := SanitizeUserID(uid); got != uid {
		t.Fatalf("expected id unchanged, got %q", got)
	}
	if got := SanitizeUserID("usr_" + strings.Repeat("a", 100)); len(got) != userFieldLimit {
		t.Fatalf("expected id capped at %d bytes, got %d", userFieldLimit, len(got))
	}
	if SanitizeUserID("") != "" {
		t.Fatal("expected empty id to stay empty")
	}
}

func TestSanitizeStringKeepsRunesWhole(t *testing.T) {
	// "ç" is two bytes; a cap landing mid-rune must step back.
	value := strings.Repeat("ç", 40)
	got := sanitizeString(value, 9)
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
	if got != strings.Repeat("ç", 4) {
		t.Fatalf("unexpected truncation result %q", got)
	}
}
