// Package verify implements the public certificate verification subsystem:
// opaque lookup tokens, masked read-only views, and the two lookup paths
// (possession of a token vs. discovery by certificate number).
package verify

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes gives 144 bits of entropy; the base64 form is 24 characters.
const tokenBytes = 18

// tokenAttempts bounds collision retries. A collision is practically
// negligible but non-zero, and a duplicate token must never be accepted.
const tokenAttempts = 5

// TokenExistsFunc reports whether a candidate token is already assigned.
type TokenExistsFunc func(ctx context.Context, token string) (bool, error)

// NewToken generates a unique, non-sequential lookup token. The token is
// derived purely from the CSPRNG, never from the certificate's sequential
// ID or issue order, and stays stable for the certificate's lifetime.
func NewToken(ctx context.Context, exists TokenExistsFunc) (string, error) {
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		buf := make([]byte, tokenBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		token := base64.RawURLEncoding.EncodeToString(buf)

		taken, err := exists(ctx, token)
		if err != nil {
			return "", fmt.Errorf("check token uniqueness: %w", err)
		}
		if !taken {
			return token, nil
		}
	}
	return "", fmt.Errorf("token generation: %d collisions in a row", tokenAttempts)
}
