package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"

	wechat "github.com/goliatone/go-wechat"
	_ "github.com/mattn/go-sqlite3"
)

func TestForDialect_ResolvesEmbeddedTrees(t *testing.T) {
	for _, dialect := range Dialects() {
		fsys, err := ForDialect(dialect, nil)
		if err != nil {
			t.Fatalf("%s: %v", dialect, err)
		}
		if _, err := fs.Stat(fsys, CredentialsMigration+".up.sql"); err != nil {
			t.Fatalf("expected %s credentials migration at tree root: %v", dialect, err)
		}
		if _, err := fs.Stat(fsys, "sqlite"); dialect == DialectSQLite && err == nil {
			t.Fatalf("expected sqlite tree to be the sqlite directory itself")
		}
	}

	postgres, err := ForDialect(" Postgres ", nil)
	if err != nil {
		t.Fatalf("expected dialect names to be normalized: %v", err)
	}
	content, err := fs.ReadFile(postgres, CredentialsMigration+".up.sql")
	if err != nil || !strings.Contains(string(content), "TIMESTAMPTZ") {
		t.Fatalf("expected postgres flavored migration, err=%v", err)
	}
}

func TestForDialect_RejectsUnknownDialect(t *testing.T) {
	if _, err := ForDialect("mysql", nil); err == nil || !strings.Contains(err.Error(), "unsupported dialect") {
		t.Fatalf("expected unsupported dialect error, got %v", err)
	}
}

func TestForDialect_RejectsUnpairedMigration(t *testing.T) {
	source := fstest.MapFS{
		"data/sql/migrations/00001_wechat_credentials.up.sql":   {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00001_wechat_credentials.down.sql": {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00002_extra.up.sql":                {Data: []byte("SELECT 1;")},
	}
	if _, err := ForDialect(DialectPostgres, source); err == nil || !strings.Contains(err.Error(), "no matching") {
		t.Fatalf("expected unpaired migration error, got %v", err)
	}
}

func TestForDialect_RequiresCredentialsMigration(t *testing.T) {
	source := fstest.MapFS{
		"00002_extra.up.sql":   {Data: []byte("SELECT 1;")},
		"00002_extra.down.sql": {Data: []byte("SELECT 1;")},
	}
	_, err := ForDialect(DialectPostgres, source)
	if err == nil || !strings.Contains(err.Error(), CredentialsMigration) {
		t.Fatalf("expected missing credentials migration error, got %v", err)
	}
}

func TestForDialect_AcceptsFlatSource(t *testing.T) {
	source := fstest.MapFS{
		"00001_wechat_credentials.up.sql":          {Data: []byte("SELECT 1;")},
		"00001_wechat_credentials.down.sql":        {Data: []byte("SELECT 1;")},
		"sqlite/00001_wechat_credentials.up.sql":   {Data: []byte("SELECT 2;")},
		"sqlite/00001_wechat_credentials.down.sql": {Data: []byte("SELECT 2;")},
	}
	fsys, err := ForDialect(DialectSQLite, source)
	if err != nil {
		t.Fatalf("sqlite from flat source: %v", err)
	}
	content, err := fs.ReadFile(fsys, CredentialsMigration+".up.sql")
	if err != nil || string(content) != "SELECT 2;" {
		t.Fatalf("expected sqlite migration body, got %q err=%v", content, err)
	}

	if _, err := ForDialect(DialectPostgres, fstest.MapFS{"README.md": {Data: []byte("x")}}); err == nil {
		t.Fatalf("expected missing migration root error")
	}
}

func TestCredentialsMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := wechat.GetMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_wechat_credentials.up.sql",
		"data/sql/migrations/00001_wechat_credentials.down.sql",
		"data/sql/migrations/sqlite/00001_wechat_credentials.up.sql",
		"data/sql/migrations/sqlite/00001_wechat_credentials.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteCredentialsMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-wechat-credentials?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(wechat.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	ctx := context.Background()
	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_wechat_credentials.up.sql"); err != nil {
		t.Fatalf("apply up: %v", err)
	}

	insert := `INSERT INTO wechat_credentials (id, slot, payload, expires_at) VALUES (?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insert, "a", "default", []byte("{}"), "2026-02-13T12:00:00Z"); err != nil {
		t.Fatalf("insert first row: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "b", "default", []byte("{}"), "2026-02-13T12:00:00Z"); err == nil {
		t.Fatalf("expected unique slot violation")
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_wechat_credentials.down.sql"); err != nil {
		t.Fatalf("apply down: %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'wechat_credentials'",
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected table to be dropped")
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, name string) error {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
