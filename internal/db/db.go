// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package db persists the audit trail and the history of played sessions.
// SQLite, PostgreSQL and MySQL are supported through Bun dialects; schema
// changes ship as embedded SQL migrations per engine.
package db // import "github.com/toeirei/blockmove/internal/db"

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var (
	//go:embed migrations
	embeddedMigrations embed.FS
	// sqlOpenFunc allows tests to override database opening behavior.
	sqlOpenFunc = sql.Open
)

// Store is the Bun-backed persistence layer.
type Store struct {
	bun    *bun.DB
	dbType string
}

// driverFor maps a configured database type onto its database/sql driver.
func driverFor(dbType string) (string, error) {
	switch dbType {
	case "sqlite":
		return "sqlite", nil
	case "postgres":
		// The pgx stdlib registers driver name "pgx".
		return "pgx", nil
	case "mysql":
		return "mysql", nil
	default:
		return "", fmt.Errorf("%w: '%s'", ErrUnsupported, dbType)
	}
}

// Open connects to dsn, applies pending migrations and returns a Store.
func Open(dbType, dsn string) (*Store, error) {
	driverName, err := driverFor(dbType)
	if err != nil {
		return nil, err
	}
	if dbType == "sqlite" {
		dsn = sqliteDSN(dsn)
	}
	start := time.Now()
	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	configurePool(sqlDB, dbType, dsn)
	dbLogf("db: opened %s driver in %s", driverName, time.Since(start))

	bdb := createBunDB(sqlDB, dbType)
	migStart := time.Now()
	if err := RunMigrations(context.Background(), bdb, dbType); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	dbLogf("db: migrations for %s completed in %s", dbType, time.Since(migStart))
	return &Store{bun: bdb, dbType: dbType}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.bun.Close()
}

// Type returns the configured database type.
func (s *Store) Type() string { return s.dbType }

// sqliteDSN adds the pragmas a file database needs for concurrent writers:
// a busy timeout so a locked database is waited on instead of failing with
// SQLITE_BUSY, and WAL so readers do not block the writer. Pragmas already
// present in dsn are left alone.
func sqliteDSN(dsn string) string {
	if isSQLiteMemory(dsn) {
		return dsn
	}
	var add []string
	if !strings.Contains(dsn, "busy_timeout") {
		add = append(add, "_pragma=busy_timeout(5000)")
	}
	if !strings.Contains(dsn, "journal_mode") {
		add = append(add, "_pragma=journal_mode(WAL)")
	}
	if len(add) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(add, "&")
}

func isSQLiteMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// configurePool applies pool limits. Values can be overridden through
// BLOCKMOVE_DB_* environment variables.
func configurePool(sqlDB *sql.DB, dbType, dsn string) {
	const (
		defaultMaxOpenConns    = 10
		defaultMaxIdleConns    = 10
		defaultConnMaxLifetime = 5 * time.Minute
		defaultConnMaxIdle     = 60 * time.Second
	)
	maxOpen := envInt("BLOCKMOVE_DB_MAX_OPEN_CONNS", defaultMaxOpenConns)
	maxIdle := envInt("BLOCKMOVE_DB_MAX_IDLE_CONNS", defaultMaxIdleConns)

	// In-memory SQLite is per connection; pin to one so every query sees the
	// migrated schema.
	if dbType == "sqlite" && isSQLiteMemory(dsn) {
		maxOpen = 1
		maxIdle = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(time.Duration(envInt("BLOCKMOVE_DB_CONN_MAX_LIFETIME_SECONDS", int(defaultConnMaxLifetime/time.Second))) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(envInt("BLOCKMOVE_DB_CONN_MAX_IDLE_SECONDS", int(defaultConnMaxIdle/time.Second))) * time.Second)
}

func envInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// createBunDB constructs a *bun.DB for the provided *sql.DB and dbType.
func createBunDB(sqlDB *sql.DB, dbType string) *bun.DB {
	switch dbType {
	case "postgres":
		return bun.NewDB(sqlDB, pgdialect.New())
	case "mysql":
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

// RunMigrations applies every embedded *.up.sql for dbType that is not yet
// recorded in schema_migrations. Each file runs in its own transaction.
func RunMigrations(ctx context.Context, bdb *bun.DB, dbType string) error {
	migrationsPath := path.Join("migrations", dbType)
	entries, err := fs.ReadDir(embeddedMigrations, migrationsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read embedded migrations (%s): %w", migrationsPath, err)
	}

	var ups []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			ups = append(ups, e.Name())
		}
	}
	sort.Strings(ups)

	versionCol := "TEXT"
	if dbType == "mysql" {
		// MySQL cannot index TEXT without a length.
		versionCol = "VARCHAR(191)"
	}
	if _, err := ExecRaw(ctx, bdb, "CREATE TABLE IF NOT EXISTS schema_migrations (version "+versionCol+" PRIMARY KEY, applied_at TIMESTAMP)"); err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	for _, fname := range ups {
		version := strings.TrimSuffix(fname, ".up.sql")

		var applied []string
		if err := QueryRawInto(ctx, bdb, &applied, "SELECT version FROM schema_migrations WHERE version = ?", version); err != nil {
			return fmt.Errorf("failed to check migration version %s: %w", version, err)
		}
		if len(applied) > 0 {
			continue
		}

		data, err := embeddedMigrations.ReadFile(path.Join(migrationsPath, fname))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", fname, err)
		}

		err = bdb.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			for _, stmt := range splitStatements(string(data)) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to execute migration %s: %w", version, err)
				}
			}
			if _, err := ExecRaw(ctx, tx, "INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)", version, time.Now().UTC()); err != nil {
				return fmt.Errorf("failed to record migration %s: %w", version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		dbLogf("db: applied migration %s", version)
	}
	return nil
}

// splitStatements splits a migration file on ';'. Migrations must not use
// semicolons inside string literals.
func splitStatements(sqlText string) []string {
	var out []string
	for _, part := range strings.Split(sqlText, ";") {
		stmt := strings.TrimSpace(stripComments(part))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func stripComments(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "--") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}
