package core

import (
	"fmt"
	"strings"
	"time"
)

// Credential is an access token plus the absolute instant it stops being usable.
// Values are never mutated; a refresh produces a new Credential.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// IsStructurallyValid reports whether both fields are present.
func (c Credential) IsStructurallyValid() bool {
	return strings.TrimSpace(c.Token) != "" && !c.ExpiresAt.IsZero()
}

// IsValid is the freshness predicate: the credential is usable iff it is
// structurally valid and ExpiresAt is strictly after now.
func (c Credential) IsValid(now time.Time) bool {
	if !c.IsStructurallyValid() {
		return false
	}
	return c.ExpiresAt.After(now)
}

// Equal compares token and expiry instant.
func (c Credential) Equal(other Credential) bool {
	return c.Token == other.Token && c.ExpiresAt.Equal(other.ExpiresAt)
}

// Redacted returns a log safe representation.
func (c Credential) Redacted() map[string]any {
	return map[string]any{
		"access_token": RedactedValue,
		"expires_at":   c.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

// NewCredentialFromGrant computes ExpiresAt = now + (ExpiresIn - margin).
func NewCredentialFromGrant(now time.Time, grant TokenGrant, margin time.Duration) (Credential, error) {
	token := strings.TrimSpace(grant.AccessToken)
	if token == "" {
		return Credential{}, remoteFetchError(
			"core: token endpoint returned an empty access token",
			nil,
			map[string]any{"retryable": false},
		)
	}
	if margin < 0 {
		margin = 0
	}
	lifetime := grant.ExpiresIn - margin
	if lifetime <= 0 {
		return Credential{}, remoteFetchError(
			fmt.Sprintf("core: token lifetime %s does not exceed safety margin %s", grant.ExpiresIn, margin),
			nil,
			map[string]any{"retryable": false, "expires_in_s": int64(grant.ExpiresIn / time.Second)},
		)
	}
	return Credential{
		Token:     token,
		ExpiresAt: now.UTC().Add(lifetime),
	}, nil
}
