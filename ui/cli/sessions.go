// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recently played sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			recs, err := st.RecentSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			now := time.Now()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tUSER\tFINGERPRINT\tDURATION\tPIECES\tLINES\tREASON")
			for _, r := range recs {
				reason := r.CloseReason
				if r.EndedAt.IsZero() {
					reason = "(playing)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					r.StartedAt.Local().Format(time.DateTime), r.Username, r.Fingerprint,
					r.Duration(now).Round(time.Second), r.PiecesLanded, r.LinesCleared, reason)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of sessions (0 for all)")
	return cmd
}
