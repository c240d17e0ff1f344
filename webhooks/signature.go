package webhooks

import (
	"context"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/goliatone/go-wechat/core"
)

const (
	QuerySignature = "signature"
	QueryTimestamp = "timestamp"
	QueryNonce     = "nonce"
	QueryEchoStr   = "echostr"
)

// Sign sorts timestamp, nonce and token, concatenates them and returns the
// lowercase hex SHA-1 of the result.
func Sign(timestamp string, nonce string, token string) string {
	parts := []string{timestamp, nonce, token}
	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether signature matches Sign(timestamp, nonce, token).
// Any blank input yields false.
func Verify(timestamp string, nonce string, token string, signature string) bool {
	for _, value := range []string{timestamp, nonce, token, signature} {
		if strings.TrimSpace(value) == "" {
			return false
		}
	}
	expected := Sign(timestamp, nonce, token)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// VerificationContext is built per request and discarded after the check.
type VerificationContext struct {
	Signature string
	Timestamp string
	Nonce     string
	Token     string
}

func NewVerificationContext(req core.InboundRequest, token string) VerificationContext {
	return VerificationContext{
		Signature: queryValue(req.Query, QuerySignature),
		Timestamp: queryValue(req.Query, QueryTimestamp),
		Nonce:     queryValue(req.Query, QueryNonce),
		Token:     token,
	}
}

func (v VerificationContext) Valid() bool {
	return Verify(v.Timestamp, v.Nonce, v.Token, v.Signature)
}

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// SignatureVerifier checks the signature/timestamp/nonce query parameters
// against the configured handshake token.
type SignatureVerifier struct {
	Token string
}

func (v SignatureVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	if strings.TrimSpace(v.Token) == "" {
		return verificationFailure("webhooks: handshake token is not configured", nil)
	}
	verification := NewVerificationContext(req, v.Token)
	if !verification.Valid() {
		return verificationFailure("webhooks: signature verification failed", map[string]any{
			"timestamp": verification.Timestamp,
			"nonce":     verification.Nonce,
		})
	}
	return nil
}

func queryValue(query map[string]string, key string) string {
	if len(query) == 0 {
		return ""
	}
	if value, ok := query[key]; ok {
		return value
	}
	// among differently-cased copies the lowest key wins
	matched, found := "", false
	for existing := range query {
		if !strings.EqualFold(strings.TrimSpace(existing), key) {
			continue
		}
		if !found || existing < matched {
			matched, found = existing, true
		}
	}
	if !found {
		return ""
	}
	return query[matched]
}
