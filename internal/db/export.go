// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/toeirei/blockmove/internal/model"
)

// ExportAudit writes every audit entry since the given time to w as
// zstd-compressed JSON lines and returns the number of entries written.
func (s *Store) ExportAudit(ctx context.Context, w io.Writer, since time.Time) (int, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("create zstd writer: %w", err)
	}
	enc := json.NewEncoder(zw)
	n := 0
	err = s.AuditEntriesSince(ctx, since, func(e model.AuditLogEntry) error {
		n++
		return enc.Encode(e)
	})
	if err != nil {
		_ = zw.Close()
		return n, fmt.Errorf("export audit: %w", err)
	}
	if err := zw.Close(); err != nil {
		return n, fmt.Errorf("finish zstd stream: %w", err)
	}
	return n, nil
}

// ReadAuditExport decodes a stream written by ExportAudit.
func ReadAuditExport(r io.Reader) ([]model.AuditLogEntry, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open zstd stream: %w", err)
	}
	defer zr.Close()
	dec := json.NewDecoder(zr)
	var out []model.AuditLogEntry
	for {
		var e model.AuditLogEntry
		if err := dec.Decode(&e); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, fmt.Errorf("decode audit export: %w", err)
		}
		out = append(out, e)
	}
}
