// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"fmt"
	"time"
)

// Maintain performs engine-specific maintenance. For SQLite this runs PRAGMA
// optimize, VACUUM, a WAL checkpoint and (unless skipIntegrity) an
// integrity check. Postgres gets VACUUM ANALYZE, MySQL OPTIMIZE TABLE on the
// blockmove tables.
func (s *Store) Maintain(ctx context.Context, skipIntegrity bool) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
	}
	sqlDB := s.bun.DB

	switch s.dbType {
	case "sqlite":
		// optimize is unsupported on some filesystems; non-fatal.
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
			dbLogf("db: sqlite optimize failed (ignored): %v", err)
		}
		if _, err := sqlDB.ExecContext(ctx, "VACUUM;"); err != nil {
			return fmt.Errorf("sqlite vacuum failed: %w", err)
		}
		_, _ = sqlDB.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE);")
		if skipIntegrity {
			return nil
		}
		var res string
		if err := sqlDB.QueryRowContext(ctx, "PRAGMA integrity_check;").Scan(&res); err != nil {
			return fmt.Errorf("sqlite integrity_check failed: %w", err)
		}
		if res != "ok" {
			return fmt.Errorf("sqlite integrity_check failed: %s", res)
		}
	case "postgres":
		if _, err := sqlDB.ExecContext(ctx, "VACUUM ANALYZE;"); err != nil {
			return fmt.Errorf("postgres vacuum failed: %w", err)
		}
	case "mysql":
		var lastErr error
		for _, table := range []string{"audit_log", "game_sessions", "schema_migrations"} {
			if _, err := sqlDB.ExecContext(ctx, "OPTIMIZE TABLE "+table); err != nil {
				dbLogf("db: mysql optimize table %s failed: %v", table, err)
				lastErr = err
			}
		}
		if lastErr != nil {
			return fmt.Errorf("mysql optimize encountered errors: %w", lastErr)
		}
	default:
		return fmt.Errorf("%w for maintenance: %s", ErrUnsupported, s.dbType)
	}
	return nil
}

// PruneAudit deletes audit entries older than before and returns how many
// rows went away.
func (s *Store) PruneAudit(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.bun.NewDelete().Model((*AuditLogModel)(nil)).
		Where("logged_at < ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
