// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/blockmove/internal/i18n"
)

func newDBCmd() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database administration",
	}
	maintainCmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run database maintenance (VACUUM/OPTIMIZE) for the configured DB",
		Long:  `Runs engine-specific maintenance tasks (VACUUM, OPTIMIZE TABLE, PRAGMA optimize).`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			skipIntegrity, _ := cmd.Flags().GetBool("skip-integrity")
			timeoutSec, _ := cmd.Flags().GetInt("timeout")

			st, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if timeoutSec > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
				defer cancel()
			}
			if skipIntegrity {
				fmt.Fprintln(cmd.OutOrStdout(), "Skipping integrity_check may speed up maintenance on large databases")
			}
			if err := st.Maintain(ctx, skipIntegrity); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return fmt.Errorf("maintenance timed out after %ds: %w", timeoutSec, err)
				}
				return fmt.Errorf("maintenance failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.db.maintained"))
			return nil
		},
	}
	applyDefaultFlags(maintainCmd)
	maintainCmd.Flags().Bool("skip-integrity", false, "Skip integrity_check (SQLite) during maintenance")
	maintainCmd.Flags().Int("timeout", 0, "Timeout in seconds for maintenance (0 means no timeout)")

	dbCmd.AddCommand(maintainCmd)
	return dbCmd
}
