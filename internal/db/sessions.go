// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/toeirei/blockmove/internal/model"
	"github.com/uptrace/bun"
)

// GameSessionModel maps game_sessions.
type GameSessionModel struct {
	bun.BaseModel `bun:"table:game_sessions"`
	ID            string    `bun:"id,pk"`
	Fingerprint   string    `bun:"fingerprint"`
	Username      string    `bun:"username"`
	Remote        string    `bun:"remote"`
	StartedAt     time.Time `bun:"started_at,notnull"`
	EndedAt       time.Time `bun:"ended_at,nullzero"`
	CloseReason   string    `bun:"close_reason"`
	PiecesLanded  int       `bun:"pieces_landed"`
	LinesCleared  int       `bun:"lines_cleared"`
}

// SessionRecorder is what the server needs to track played sessions.
type SessionRecorder interface {
	StartSession(ctx context.Context, rec model.GameSession) error
	EndSession(ctx context.Context, rec model.GameSession) error
}

// StartSession inserts a running session row.
func (s *Store) StartSession(ctx context.Context, rec model.GameSession) error {
	row := &GameSessionModel{
		ID:          rec.ID,
		Fingerprint: rec.Fingerprint,
		Username:    rec.Username,
		Remote:      rec.Remote,
		StartedAt:   rec.StartedAt.UTC(),
	}
	_, err := s.bun.NewInsert().Model(row).Exec(ctx)
	return MapDBError(err)
}

// EndSession stamps the end time, close reason and counters of rec.ID.
func (s *Store) EndSession(ctx context.Context, rec model.GameSession) error {
	ended := rec.EndedAt
	if ended.IsZero() {
		ended = time.Now()
	}
	res, err := s.bun.NewUpdate().Model((*GameSessionModel)(nil)).
		Set("ended_at = ?", ended.UTC()).
		Set("close_reason = ?", rec.CloseReason).
		Set("pieces_landed = ?", rec.PiecesLanded).
		Set("lines_cleared = ?", rec.LinesCleared).
		Where("id = ?", rec.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("end session %s: %w", rec.ID, ErrNotFound)
	}
	return nil
}

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]model.GameSession, error) {
	var rows []GameSessionModel
	q := s.bun.NewSelect().Model(&rows).OrderExpr("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]model.GameSession, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.GameSession{
			ID:           r.ID,
			Fingerprint:  r.Fingerprint,
			Username:     r.Username,
			Remote:       r.Remote,
			StartedAt:    r.StartedAt,
			EndedAt:      r.EndedAt,
			CloseReason:  r.CloseReason,
			PiecesLanded: r.PiecesLanded,
			LinesCleared: r.LinesCleared,
		})
	}
	return out, nil
}
