package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

// credentialRecord is the single row per slot holding the encoded credential.
type credentialRecord struct {
	bun.BaseModel `bun:"table:wechat_credentials,alias:wc"`

	ID             string    `bun:"id,pk"`
	Slot           string    `bun:"slot,notnull"`
	Payload        []byte    `bun:"payload,notnull"`
	PayloadFormat  string    `bun:"payload_format,notnull"`
	PayloadVersion int       `bun:"payload_version,notnull"`
	ExpiresAt      time.Time `bun:"expires_at,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
