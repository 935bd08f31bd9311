// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/blockmove/internal/db"
	"github.com/toeirei/blockmove/internal/i18n"
	"github.com/toeirei/blockmove/internal/model"
	"golang.org/x/term"
)

// openStore opens the configured database for an operator command.
func openStore() (*db.Store, error) {
	st, err := db.Open(appConfig.Database.Type, appConfig.Database.Dsn)
	if err != nil {
		return nil, fmt.Errorf("%s", i18n.T("config.error_init_db", err))
	}
	return st, nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newAuditCmd() *cobra.Command {
	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Read, export or prune the audit trail",
	}

	var limit int
	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent audit entries, newest first",
		Long: `Prints recent audit entries. On a terminal the output is a table; when
piped, or with --json, one JSON object per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			entries, err := st.RecentAuditEntries(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON || !isTerminal(out) {
				return writeAuditJSON(out, entries)
			}
			return writeAuditTable(out, entries)
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of entries (0 for all)")
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Force JSON lines output")

	var since time.Duration
	exportCmd := &cobra.Command{
		Use:   "export <file.zst>",
		Short: "Write the audit trail as zstd-compressed JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			f, err := os.OpenFile(args[0], os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
			if err != nil {
				return err
			}
			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			n, err := st.ExportAudit(cmd.Context(), f, from)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.audit.exported", n, args[0]))
			return nil
		},
	}
	exportCmd.Flags().DurationVar(&since, "since", 0, "Only export entries newer than this (e.g. 720h); 0 exports everything")

	var olderThan time.Duration
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete audit entries older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			st, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			n, err := st.PruneAudit(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d audit entries\n", n)
			return nil
		},
	}
	pruneCmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age cutoff, e.g. 2160h")

	auditCmd.AddCommand(listCmd, exportCmd, pruneCmd)
	return auditCmd
}

func writeAuditJSON(w io.Writer, entries []model.AuditLogEntry) error {
	enc := json.NewEncoder(w)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}

func writeAuditTable(w io.Writer, entries []model.AuditLogEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, i18n.T("cli.audit.empty"))
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tACTOR\tREMOTE\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Timestamp.Local().Format(time.DateTime), e.Action, e.Actor, e.Remote, e.Details)
	}
	return tw.Flush()
}
