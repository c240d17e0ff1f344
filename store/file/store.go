// Package file persists the access credential in a single JSON file.
package file

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goliatone/go-wechat/core"
	"github.com/natefinch/atomic"
)

const DefaultFileName = "access_token.json"

const storeName = "file"

// CredentialStore overwrites one file per save. Writes go to a temp file
// that is renamed over the target, so readers never see a partial record.
type CredentialStore struct {
	path  string
	codec core.CredentialCodec
	mu    sync.Mutex
}

type Option func(*CredentialStore)

func WithCodec(codec core.CredentialCodec) Option {
	return func(s *CredentialStore) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// NewCredentialStore stores into path. A directory path gets DefaultFileName
// appended.
func NewCredentialStore(path string, opts ...Option) *CredentialStore {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultFileName
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DefaultFileName)
	}
	store := &CredentialStore{path: filepath.Clean(path), codec: core.JSONCredentialCodec{}}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store
}

func (s *CredentialStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *CredentialStore) Save(ctx context.Context, credential core.Credential) error {
	if s == nil {
		return core.StoreIOError("file: store is nil", nil, nil)
	}
	if err := ctxErr(ctx); err != nil {
		return core.StoreIOError("file: save canceled", err, map[string]any{"path": s.path})
	}
	payload, err := s.codec.Encode(credential)
	if err != nil {
		return core.StoreIOError("file: encode credential", err, map[string]any{"path": s.path})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return core.StoreIOError("file: create directory", err, map[string]any{"path": s.path})
		}
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(payload)); err != nil {
		return core.StoreIOError("file: write credential", err, map[string]any{"path": s.path})
	}
	return nil
}

func (s *CredentialStore) Load(ctx context.Context) (core.Credential, error) {
	if s == nil {
		return core.Credential{}, core.StoreIOError("file: store is nil", nil, nil)
	}
	if err := ctxErr(ctx); err != nil {
		return core.Credential{}, core.StoreIOError("file: load canceled", err, map[string]any{"path": s.path})
	}

	s.mu.Lock()
	payload, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return core.Credential{}, core.CredentialAbsentError(storeName)
	}
	if err != nil {
		return core.Credential{}, core.StoreIOError("file: read credential", err, map[string]any{"path": s.path})
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return core.Credential{}, core.CredentialAbsentError(storeName)
	}
	credential, err := s.codec.Decode(payload)
	if err != nil {
		return core.Credential{}, core.StoreIOError("file: decode credential", err, map[string]any{"path": s.path})
	}
	return credential, nil
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}

var _ core.CredentialStore = (*CredentialStore)(nil)
