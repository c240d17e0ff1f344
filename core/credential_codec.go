package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	CredentialPayloadFormatJSONV1 = "wechat_credential_json"
	CredentialPayloadVersionV1    = 1
)

// CredentialCodec serializes a Credential for a durable slot.
type CredentialCodec interface {
	Format() string
	Version() int
	Encode(credential Credential) ([]byte, error)
	Decode(payload []byte) (Credential, error)
}

type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return CredentialPayloadFormatJSONV1
}

func (JSONCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

type jsonCredentialPayload struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (JSONCredentialCodec) Encode(credential Credential) ([]byte, error) {
	payload := jsonCredentialPayload{
		AccessToken: strings.TrimSpace(credential.Token),
		ExpiresAt:   credential.ExpiresAt.UTC(),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("core: encode credential payload: %w", err)
	}
	return encoded, nil
}

// Decode returns the stored credential as-is. Structural checks are left to
// the freshness predicate so a partial record still decodes.
func (JSONCredentialCodec) Decode(payload []byte) (Credential, error) {
	if len(payload) == 0 {
		return Credential{}, fmt.Errorf("core: credential payload is empty")
	}
	decoded := jsonCredentialPayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Credential{}, fmt.Errorf("core: decode credential payload: %w", err)
	}
	credential := Credential{Token: strings.TrimSpace(decoded.AccessToken)}
	if !decoded.ExpiresAt.IsZero() {
		credential.ExpiresAt = decoded.ExpiresAt.UTC()
	}
	return credential, nil
}
