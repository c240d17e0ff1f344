package sqlstore

import (
	"context"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-wechat/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const storeName = "sql"

// CredentialStore keeps one row per slot in wechat_credentials. Save
// replaces the row in place.
type CredentialStore struct {
	db    *bun.DB
	repo  repository.Repository[*credentialRecord]
	codec core.CredentialCodec
	slot  string
}

type Option func(*CredentialStore)

func WithSlot(slot string) Option {
	return func(s *CredentialStore) {
		if trimmed := strings.TrimSpace(slot); trimmed != "" {
			s.slot = trimmed
		}
	}
}

func WithCodec(codec core.CredentialCodec) Option {
	return func(s *CredentialStore) {
		if codec != nil {
			s.codec = codec
		}
	}
}

func NewCredentialStore(db *bun.DB, opts ...Option) (*CredentialStore, error) {
	if db == nil {
		return nil, core.StoreIOError("sqlstore: bun db is required", nil, nil)
	}
	repo := repository.NewRepository[*credentialRecord](db, credentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, core.StoreIOError("sqlstore: invalid credential repository wiring", err, nil)
		}
	}
	store := &CredentialStore{
		db:    db,
		repo:  repo,
		codec: core.JSONCredentialCodec{},
		slot:  core.DefaultCredentialSlot,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store, nil
}

func (s *CredentialStore) Slot() string {
	if s == nil {
		return ""
	}
	return s.slot
}

func (s *CredentialStore) Save(ctx context.Context, credential core.Credential) error {
	if s == nil || s.db == nil {
		return core.StoreIOError("sqlstore: credential store is not configured", nil, nil)
	}
	payload, err := s.codec.Encode(credential)
	if err != nil {
		return core.StoreIOError("sqlstore: encode credential", err, map[string]any{"slot": s.slot})
	}
	now := time.Now().UTC()
	record := &credentialRecord{
		ID:             uuid.NewString(),
		Slot:           s.slot,
		Payload:        payload,
		PayloadFormat:  s.codec.Format(),
		PayloadVersion: s.codec.Version(),
		ExpiresAt:      credential.ExpiresAt.UTC(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err = s.db.NewInsert().
		Model(record).
		On("CONFLICT (slot) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("payload_format = EXCLUDED.payload_format").
		Set("payload_version = EXCLUDED.payload_version").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return core.StoreIOError("sqlstore: upsert credential", err, map[string]any{"slot": s.slot})
	}
	return nil
}

func (s *CredentialStore) Load(ctx context.Context) (core.Credential, error) {
	if s == nil || s.repo == nil {
		return core.Credential{}, core.StoreIOError("sqlstore: credential store is not configured", nil, nil)
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("slot", "=", s.slot),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Credential{}, core.StoreIOError("sqlstore: load credential", err, map[string]any{"slot": s.slot})
	}
	if len(records) == 0 {
		return core.Credential{}, core.CredentialAbsentError(storeName)
	}
	record := records[0]
	if record.PayloadFormat != s.codec.Format() || record.PayloadVersion != s.codec.Version() {
		return core.Credential{}, core.StoreIOError("sqlstore: unsupported credential payload", nil, map[string]any{
			"slot":            s.slot,
			"payload_format":  record.PayloadFormat,
			"payload_version": record.PayloadVersion,
		})
	}
	credential, err := s.codec.Decode(record.Payload)
	if err != nil {
		return core.Credential{}, core.StoreIOError("sqlstore: decode credential", err, map[string]any{"slot": s.slot})
	}
	return credential, nil
}
