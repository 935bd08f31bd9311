// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

// execRawProvider accepts either *bun.DB or *bun.Tx.
type execRawProvider interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

// ExecRaw executes a raw SQL statement through Bun so placeholders are
// rewritten for the active dialect.
func ExecRaw(ctx context.Context, exec execRawProvider, query string, args ...any) (sql.Result, error) {
	return exec.NewRaw(query, args...).Exec(ctx)
}

// QueryRawInto runs a raw query and scans the result into dest.
func QueryRawInto(ctx context.Context, exec execRawProvider, dest any, query string, args ...any) error {
	return exec.NewRaw(query, args...).Scan(ctx, dest)
}
