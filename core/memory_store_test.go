package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCredentialStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryCredentialStore()
	if _, err := store.Load(ctx); !IsCredentialAbsent(err) {
		t.Fatalf("expected absent before first save, got %v", err)
	}

	first := Credential{Token: "T1", ExpiresAt: testNow.Add(time.Hour)}
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("save: %v", err)
	}
	second := Credential{Token: "T2", ExpiresAt: testNow.Add(2 * time.Hour)}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.Equal(second) {
		t.Fatalf("expected last write to win, got %+v", loaded)
	}
}

func TestMemoryCredentialStore_NilReceiver(t *testing.T) {
	var store *MemoryCredentialStore
	if err := store.Save(context.Background(), Credential{}); !IsStoreIOFailure(err) {
		t.Fatalf("expected store io failure on nil store, got %v", err)
	}
}
