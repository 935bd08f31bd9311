// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/toeirei/blockmove/internal/config"
	"github.com/toeirei/blockmove/internal/credstore"
	"github.com/toeirei/blockmove/internal/i18n"
	"github.com/toeirei/blockmove/internal/sshkey"
)

// errKeyNotAuthorized is returned by keys check --key for a key the file
// does not contain.
var errKeyNotAuthorized = errors.New("key is not authorized")

func newKeysCmd() *cobra.Command {
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Inspect the authorized keys file",
	}
	var keyFile string
	checkCmd := &cobra.Command{
		Use:   "check [file]",
		Short: "Validate an authorized_keys file and list its fingerprints",
		Long: `Parses the given file, or the one named by SECRETS_LOCATION, exactly as the
server would at startup. A malformed entry is reported with its line number
and the command exits non-zero.

With --key, the public key in the given file is looked up as well and the
command fails when it would be rejected.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := appConfig.SecretsLocation
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no file given and %s is not set", config.SecretsEnv)
			}
			return checkKeys(cmd, path, keyFile)
		},
	}
	checkCmd.Flags().StringVar(&keyFile, "key", "", "Public key file to look up in the authorized keys")
	keysCmd.AddCommand(checkCmd)
	return keysCmd
}

func checkKeys(cmd *cobra.Command, path, keyFile string) error {
	snap, err := credstore.Load(path)
	if err != nil {
		return err
	}

	entries := snap.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Fingerprint() < entries[j].Fingerprint() })

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tFINGERPRINT\tCOMMENT\tOPTIONS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Key.Type(), e.Fingerprint(), e.Comment, strings.Join(e.Options, ","))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out, i18n.T("cli.keys.valid", snap.Len(), path))
	if keyFile == "" {
		return nil
	}
	return lookupKey(cmd, snap, keyFile)
}

// lookupKey reports whether the first key in keyFile is in snap, the same
// match the server applies to a presented key.
func lookupKey(cmd *cobra.Command, snap *credstore.Snapshot, keyFile string) error {
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	var line string
	for _, l := range strings.Split(string(data), "\n") {
		if l = strings.TrimSpace(l); l != "" && !strings.HasPrefix(l, "#") {
			line = l
			break
		}
	}
	presented, err := sshkey.ParseLine(line)
	if err != nil {
		return fmt.Errorf("%s: %w", keyFile, err)
	}
	e, ok := snap.Lookup(presented.Key.Marshal())
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.keys.no_match", presented.Fingerprint()))
		return fmt.Errorf("%s: %w", presented.Fingerprint(), errKeyNotAuthorized)
	}
	fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.keys.match", e.Fingerprint(), e.Comment))
	return nil
}
