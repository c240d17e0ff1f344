package core

import (
	"context"
	"sync"
)

// MemoryCredentialStore keeps the slot in process memory.
type MemoryCredentialStore struct {
	mu         sync.RWMutex
	credential Credential
	present    bool
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{}
}

func (s *MemoryCredentialStore) Save(_ context.Context, credential Credential) error {
	if s == nil {
		return storeIOError("core: memory credential store is nil", nil, nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = credential
	s.present = true
	return nil
}

func (s *MemoryCredentialStore) Load(_ context.Context) (Credential, error) {
	if s == nil {
		return Credential{}, storeIOError("core: memory credential store is nil", nil, nil)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.present {
		return Credential{}, CredentialAbsentError("memory")
	}
	return s.credential, nil
}
