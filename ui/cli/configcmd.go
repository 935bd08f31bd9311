// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
	"github.com/toeirei/blockmove/internal/config"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or persist the effective configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(appConfig)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	var system bool
	var to string
	writeCmd := &cobra.Command{
		Use:   "write",
		Short: "Write the effective configuration to blockmove.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if to != "" {
				if err := config.WriteConfigTo(&appConfig, to); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", to)
				return nil
			}
			path, err := config.GetConfigPath(system)
			if err != nil {
				return err
			}
			if err := config.WriteConfigFile(&appConfig, system); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	writeCmd.Flags().BoolVar(&system, "system", false, "Write the system-wide file instead of the user file")
	writeCmd.Flags().StringVarP(&to, "output", "o", "", "Write to this path instead")

	configCmd.AddCommand(showCmd, writeCmd)
	return configCmd
}
