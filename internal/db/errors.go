// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"errors"
	"strings"
)

var (
	// ErrDuplicate is returned when inserting a record that already exists,
	// e.g. a session ID recorded twice.
	ErrDuplicate = errors.New("duplicate record")
	// ErrNotFound is returned when an update targets a missing row.
	ErrNotFound = errors.New("record not found")
	// ErrUnsupported is returned for a database type with no dialect.
	ErrUnsupported = errors.New("unsupported database type")
)

// MapDBError maps driver-specific constraint violations onto ErrDuplicate.
// The match is string-based so this file needs no driver imports.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}
	le := strings.ToLower(err.Error())
	// MySQL duplicate entry (1062), Postgres unique violation (23505), SQLite unique constraint
	if strings.Contains(le, "duplicate") || strings.Contains(le, "unique") || strings.Contains(le, "23505") || strings.Contains(le, "1062") {
		return ErrDuplicate
	}
	return err
}
