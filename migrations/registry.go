package migrations

import (
	"fmt"
	"io/fs"
	"strings"

	wechat "github.com/goliatone/go-wechat"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// CredentialsMigration creates the wechat_credentials table read and
// written by the SQL credential store. Every dialect tree must carry it.
const CredentialsMigration = "00001_wechat_credentials"

const rootPath = "data/sql/migrations"

var dialectDirs = map[string]string{
	DialectPostgres: ".",
	DialectSQLite:   "sqlite",
}

// Dialects lists the supported dialects, postgres first.
func Dialects() []string {
	return []string{DialectPostgres, DialectSQLite}
}

// ForDialect returns the migration tree for dialect, ready to hand to
// persistence.Client.RegisterSQLMigrations. A nil source uses the embedded
// migrations; otherwise source holds data/sql/migrations or is that
// directory itself.
func ForDialect(dialect string, source fs.FS) (fs.FS, error) {
	dialect = strings.ToLower(strings.TrimSpace(dialect))
	dir, ok := dialectDirs[dialect]
	if !ok {
		return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}
	if source == nil {
		source = wechat.GetMigrationsFS()
	}
	root, err := migrationsRoot(source)
	if err != nil {
		return nil, err
	}

	fsys := root
	if dir != "." {
		fsys, err = fs.Sub(root, dir)
		if err != nil {
			return nil, fmt.Errorf("migrations: resolve %s tree: %w", dialect, err)
		}
	}
	if err := validateTree(dialect, fsys); err != nil {
		return nil, err
	}
	return fsys, nil
}

// validateTree requires a down file for every up file and the credentials
// migration among them.
func validateTree(dialect string, fsys fs.FS) error {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return fmt.Errorf("migrations: glob %s: %w", dialect, err)
	}
	if len(ups) == 0 {
		return fmt.Errorf("migrations: %s tree has no *.up.sql files", dialect)
	}

	var hasCredentials bool
	for _, up := range ups {
		name := strings.TrimSuffix(up, ".up.sql")
		if _, err := fs.Stat(fsys, name+".down.sql"); err != nil {
			return fmt.Errorf("migrations: %s migration %s has no matching %s.down.sql", dialect, up, name)
		}
		if name == CredentialsMigration {
			hasCredentials = true
		}
	}
	if !hasCredentials {
		return fmt.Errorf("migrations: %s tree is missing %s", dialect, CredentialsMigration)
	}
	return nil
}

func migrationsRoot(source fs.FS) (fs.FS, error) {
	if info, err := fs.Stat(source, rootPath); err == nil && info.IsDir() {
		return fs.Sub(source, rootPath)
	}
	if matches, err := fs.Glob(source, "*.up.sql"); err == nil && len(matches) > 0 {
		return source, nil
	}
	return nil, fmt.Errorf("migrations: %s not found in source", rootPath)
}
