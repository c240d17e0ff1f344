package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-wechat/migrations"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// PersistenceConfig satisfies the go-persistence-bun client config.
type PersistenceConfig struct {
	Driver         string
	DSN            string
	Debug          bool
	PingTimeout    time.Duration
	OtelIdentifier string
}

func (c PersistenceConfig) GetDebug() bool {
	return c.Debug
}

func (c PersistenceConfig) GetDriver() string {
	return c.Driver
}

func (c PersistenceConfig) GetServer() string {
	return c.DSN
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	if strings.TrimSpace(c.OtelIdentifier) == "" {
		return "go-wechat"
	}
	return c.OtelIdentifier
}

// OpenPersistence opens the database, registers the embedded migrations for
// the driver's dialect and applies them.
func OpenPersistence(ctx context.Context, cfg PersistenceConfig, migrationSources ...fs.FS) (*persistence.Client, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	dialect, migrationDialect, err := resolveDialect(driver)
	if err != nil {
		return nil, err
	}
	cfg.Driver = driver

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}

	var source fs.FS
	if len(migrationSources) > 0 {
		source = migrationSources[0]
	}
	migrationFS, err := migrations.ForDialect(migrationDialect, source)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	client.RegisterSQLMigrations(migrationFS)
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return client, nil
}

// NewCredentialStoreFromPersistence accepts a *persistence.Client, a *bun.DB
// or anything exposing DB() *bun.DB.
func NewCredentialStoreFromPersistence(client any, opts ...Option) (*CredentialStore, error) {
	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}
	return NewCredentialStore(db, opts...)
}

// NewCachedCredentialStoreFromPersistence wraps the SQL store with a
// repository cache. A nil cacheService gets one built from the default
// cache config.
func NewCachedCredentialStoreFromPersistence(
	client any,
	cacheService repositorycache.CacheService,
	opts ...Option,
) (*CachedCredentialStore, error) {
	base, err := NewCredentialStoreFromPersistence(client, opts...)
	if err != nil {
		return nil, err
	}
	if cacheService == nil {
		cacheService, err = repositorycache.NewCacheService(repositorycache.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("sqlstore: new cache service: %w", err)
		}
	}
	return NewCachedCredentialStore(base, cacheService)
}

func resolveDialect(driver string) (schema.Dialect, string, error) {
	switch driver {
	case DriverPostgres:
		return pgdialect.New(), migrations.DialectPostgres, nil
	case DriverSQLite:
		return sqlitedialect.New(), migrations.DialectSQLite, nil
	default:
		return nil, "", fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
