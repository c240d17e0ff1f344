package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-wechat/core"
)

var sqliteCounter atomic.Int64

func newSQLiteClient(t *testing.T) *persistence.Client {
	t.Helper()
	dsn := fmt.Sprintf(
		"file:wechat-test-%d-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
		sqliteCounter.Add(1),
	)
	client, err := OpenPersistence(context.Background(), PersistenceConfig{Driver: DriverSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("open persistence: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client := newSQLiteClient(t)
	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"wechat_credentials",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "wechat_credentials" {
		t.Fatalf("expected wechat_credentials table, got %q", tableName)
	}
}

func TestCredentialStore_EmptyIsAbsent(t *testing.T) {
	store, err := NewCredentialStoreFromPersistence(newSQLiteClient(t))
	if err != nil {
		t.Fatalf("new credential store: %v", err)
	}
	_, err = store.Load(context.Background())
	if !core.IsCredentialAbsent(err) {
		t.Fatalf("expected credential absent, got %v", err)
	}
}

func TestCredentialStore_RoundTripAndOverwrite(t *testing.T) {
	ctx := context.Background()
	client := newSQLiteClient(t)
	store, err := NewCredentialStoreFromPersistence(client)
	if err != nil {
		t.Fatalf("new credential store: %v", err)
	}
	expires := time.Date(2026, 2, 13, 13, 55, 0, 123456789, time.UTC)

	if err := store.Save(ctx, core.Credential{Token: "tok-1", ExpiresAt: expires}); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.Equal(core.Credential{Token: "tok-1", ExpiresAt: expires}) {
		t.Fatalf("expected exact roundtrip, got %+v", loaded)
	}

	if err := store.Save(ctx, core.Credential{Token: "tok-2", ExpiresAt: expires.Add(time.Hour)}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	loaded, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("load after overwrite: %v", err)
	}
	if loaded.Token != "tok-2" || !loaded.ExpiresAt.Equal(expires.Add(time.Hour)) {
		t.Fatalf("expected overwritten credential, got %+v", loaded)
	}

	var rows int
	if err := client.DB().NewRaw("SELECT COUNT(*) FROM wechat_credentials").Scan(ctx, &rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single slot row, got %d", rows)
	}
}

func TestCredentialStore_SlotsAreIndependent(t *testing.T) {
	ctx := context.Background()
	client := newSQLiteClient(t)
	primary, _ := NewCredentialStoreFromPersistence(client, WithSlot("primary"))
	secondary, _ := NewCredentialStoreFromPersistence(client, WithSlot("secondary"))

	if err := primary.Save(ctx, core.Credential{Token: "p", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("save primary: %v", err)
	}
	if _, err := secondary.Load(ctx); !core.IsCredentialAbsent(err) {
		t.Fatalf("expected secondary slot to be absent, got %v", err)
	}
}

func TestCredentialStore_UnsupportedPayloadIsStoreIOFailure(t *testing.T) {
	ctx := context.Background()
	client := newSQLiteClient(t)
	store, _ := NewCredentialStoreFromPersistence(client)
	if _, err := client.DB().ExecContext(ctx,
		`INSERT INTO wechat_credentials (id, slot, payload, payload_format, payload_version, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		"legacy", core.DefaultCredentialSlot, []byte(`"double-encoded"`), "legacy", 0, time.Now().UTC(),
	); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Load(ctx); !core.IsStoreIOFailure(err) {
		t.Fatalf("expected store io failure, got %v", err)
	}
}

func TestCredentialStore_ClosedDBIsStoreIOFailure(t *testing.T) {
	client := newSQLiteClient(t)
	store, _ := NewCredentialStoreFromPersistence(client)
	_ = client.Close()
	if err := store.Save(context.Background(), core.Credential{Token: "t", ExpiresAt: time.Now().Add(time.Hour)}); !core.IsStoreIOFailure(err) {
		t.Fatalf("expected store io failure on save, got %v", err)
	}
	if _, err := store.Load(context.Background()); !core.IsStoreIOFailure(err) {
		t.Fatalf("expected store io failure on load, got %v", err)
	}
}

func TestNewCredentialStoreFromPersistence_RejectsUnknownClient(t *testing.T) {
	if _, err := NewCredentialStoreFromPersistence(nil); err == nil {
		t.Fatalf("expected nil client error")
	}
	if _, err := NewCredentialStoreFromPersistence(&sql.DB{}); err == nil {
		t.Fatalf("expected unsupported client type error")
	}
}

func TestOpenPersistence_RejectsUnknownDriver(t *testing.T) {
	if _, err := OpenPersistence(context.Background(), PersistenceConfig{Driver: "mysql"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}
