// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model holds the records blockmove persists.
package model

import (
	"fmt"
	"time"
)

// Audit actions written by the server.
const (
	ActionAuthAccept   = "AUTH_ACCEPT"
	ActionAuthReject   = "AUTH_REJECT"
	ActionSessionStart = "SESSION_START"
	ActionSessionEnd   = "SESSION_END"
	ActionGameOver     = "GAME_OVER"
	ActionKeysReload   = "KEYS_RELOAD"
)

// AuditLogEntry is one row of the audit trail.
type AuditLogEntry struct {
	ID        int       `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"` // key fingerprint, or "invalid"
	Remote    string    `json:"remote"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

// String renders the entry on one line for CLI output.
func (e AuditLogEntry) String() string {
	return fmt.Sprintf("%s %-14s %s %s %s", e.Timestamp.Format(time.RFC3339), e.Action, e.Actor, e.Remote, e.Details)
}

// GameSession records one played connection.
type GameSession struct {
	ID           string
	Fingerprint  string
	Username     string
	Remote       string
	StartedAt    time.Time
	EndedAt      time.Time // zero while running
	CloseReason  string
	PiecesLanded int
	LinesCleared int
}

// Duration is how long the session lasted, or has lasted so far.
func (g GameSession) Duration(now time.Time) time.Duration {
	if g.EndedAt.IsZero() {
		return now.Sub(g.StartedAt)
	}
	return g.EndedAt.Sub(g.StartedAt)
}
