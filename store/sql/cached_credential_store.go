package sqlstore

import (
	"context"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-wechat/core"
)

const credentialCacheKeyPrefix = "go-wechat::credential::v1"

// SlotStore is a CredentialStore bound to a named slot.
type SlotStore interface {
	core.CredentialStore
	Slot() string
}

// CachedCredentialStore puts a read-through cache in front of a slot store.
// Errors, including absent, are never cached.
type CachedCredentialStore struct {
	base     SlotStore
	cache    repositorycache.CacheService
	observer core.Observer
}

type CachedOption func(*CachedCredentialStore)

// WithCacheObserver reports cache invalidation failures that Save does not
// return.
func WithCacheObserver(observer core.Observer) CachedOption {
	return func(s *CachedCredentialStore) {
		s.observer = observer
	}
}

func NewCachedCredentialStore(base SlotStore, cacheService repositorycache.CacheService, opts ...CachedOption) (*CachedCredentialStore, error) {
	if base == nil {
		return nil, core.StoreIOError("sqlstore: base credential store is required", nil, nil)
	}
	if cacheService == nil {
		return nil, core.StoreIOError("sqlstore: credential cache service is required", nil, nil)
	}
	store := &CachedCredentialStore{base: base, cache: cacheService}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store, nil
}

// CredentialCacheKey returns go-wechat::credential::v1::<slot> with the slot
// path-escaped.
func CredentialCacheKey(slot string) string {
	slot = strings.TrimSpace(slot)
	if slot == "" {
		slot = core.DefaultCredentialSlot
	}
	return credentialCacheKeyPrefix + "::" + url.PathEscape(slot)
}

func (s *CachedCredentialStore) Load(ctx context.Context) (core.Credential, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Credential{}, core.StoreIOError("sqlstore: cached credential store is not configured", nil, nil)
	}
	return repositorycache.GetOrFetch(ctx, s.cache, CredentialCacheKey(s.base.Slot()), func(ctx context.Context) (core.Credential, error) {
		return s.base.Load(ctx)
	})
}

func (s *CachedCredentialStore) Save(ctx context.Context, credential core.Credential) error {
	if s == nil || s.base == nil || s.cache == nil {
		return core.StoreIOError("sqlstore: cached credential store is not configured", nil, nil)
	}
	key := CredentialCacheKey(s.base.Slot())
	// evict before writing so a failed eviction leaves cache and base agreeing
	if err := s.cache.Delete(ctx, key); err != nil {
		return core.StoreIOError("sqlstore: invalidate credential cache", err, map[string]any{"slot": s.base.Slot()})
	}
	if err := s.base.Save(ctx, credential); err != nil {
		return err
	}
	// a Load racing the write may have refilled the old value
	if err := s.cache.Delete(ctx, key); err != nil {
		s.observer.Log(ctx, "warn", "credential cache invalidation after save failed", map[string]any{
			"slot":  s.base.Slot(),
			"error": err.Error(),
		})
	}
	return nil
}

func (s *CachedCredentialStore) Slot() string {
	if s == nil || s.base == nil {
		return ""
	}
	return s.base.Slot()
}
