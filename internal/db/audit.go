// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"time"

	"github.com/toeirei/blockmove/internal/model"
	"github.com/uptrace/bun"
)

// AuditWriter is the minimal surface needed to record audit entries. The
// server and authenticator depend on this, not on *Store.
type AuditWriter interface {
	LogAction(ctx context.Context, entry model.AuditLogEntry) error
}

// AuditLogModel maps the audit_log table.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log"`
	ID            int       `bun:"id,pk,autoincrement"`
	LoggedAt      time.Time `bun:"logged_at,notnull"`
	Actor         string    `bun:"actor"`
	Remote        string    `bun:"remote"`
	Action        string    `bun:"action"`
	Details       string    `bun:"details"`
}

func (a AuditLogModel) toEntry() model.AuditLogEntry {
	return model.AuditLogEntry{
		ID:        a.ID,
		Timestamp: a.LoggedAt,
		Actor:     a.Actor,
		Remote:    a.Remote,
		Action:    a.Action,
		Details:   a.Details,
	}
}

// LogAction inserts an audit entry. A zero Timestamp is replaced with now.
func (s *Store) LogAction(ctx context.Context, entry model.AuditLogEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	row := &AuditLogModel{
		LoggedAt: ts.UTC(),
		Actor:    entry.Actor,
		Remote:   entry.Remote,
		Action:   entry.Action,
		Details:  entry.Details,
	}
	_, err := s.bun.NewInsert().Model(row).Exec(ctx)
	return MapDBError(err)
}

// RecentAuditEntries returns up to limit entries, newest first. A limit of
// zero or less returns everything.
func (s *Store) RecentAuditEntries(ctx context.Context, limit int) ([]model.AuditLogEntry, error) {
	var rows []AuditLogModel
	q := s.bun.NewSelect().Model(&rows).OrderExpr("logged_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.AuditLogEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntry())
	}
	return out, nil
}

// AuditEntriesSince streams entries at or after since, oldest first, to fn.
// Iteration stops at the first error fn returns.
func (s *Store) AuditEntriesSince(ctx context.Context, since time.Time, fn func(model.AuditLogEntry) error) error {
	rows, err := s.bun.NewSelect().Model((*AuditLogModel)(nil)).
		Where("logged_at >= ?", since.UTC()).
		OrderExpr("logged_at ASC, id ASC").
		Rows(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var r AuditLogModel
		if err := s.bun.ScanRow(ctx, rows, &r); err != nil {
			return err
		}
		if err := fn(r.toEntry()); err != nil {
			return err
		}
	}
	return rows.Err()
}
