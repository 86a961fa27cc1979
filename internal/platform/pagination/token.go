package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
)

const maxTokenLength = 1024

// ValidateToken checks that an opaque page token is well formed. Tokens are
// produced by the repositories as URL-safe base64; their contents are not
// interpreted here.
func ValidateToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", nil
	}
	if len(token) > maxTokenLength {
		return "", fmt.Errorf("%w: token too long", ErrInvalidPageToken)
	}
	if _, err := base64.RawURLEncoding.DecodeString(token); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return token, nil
}
