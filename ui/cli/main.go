// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// main.go sets up the root command, global flags, configuration loading and
// build version reporting.

package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/toeirei/blockmove/buildvars"
	"github.com/toeirei/blockmove/internal/config"
	"github.com/toeirei/blockmove/internal/db"
	"github.com/toeirei/blockmove/internal/i18n"
	"github.com/toeirei/blockmove/internal/logging"
)

var version = buildvars.VersionOrDefault("dev")
var gitCommit = buildvars.CommitOrDefault("dev")
var buildDate = buildvars.Date

var cfgFile string
var verbose bool
var showVersionFlag bool

var appConfig config.Config

// setupDefaultServices loads .env, the config file, environment and flags
// into appConfig and initializes i18n.
func setupDefaultServices(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(""); err != nil {
		logging.Warnf("%v", err)
	}

	explicitPath, err := getConfigPathFromCli(cmd)
	if err != nil {
		return err
	}

	defaults := config.Defaults()
	appConfig, err = config.LoadConfig[config.Config](cmd, defaults, explicitPath)
	if errors.As(err, &viper.ConfigFileNotFoundError{}) {
		logging.Debugf("no config file found, using defaults and environment")
	} else if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if appConfig.Language == "" {
		appConfig.Language = defaults["language"].(string)
	}
	if appConfig.Database.Type == "" {
		appConfig.Database.Type = defaults["database.type"].(string)
	}
	if appConfig.Database.Dsn == "" {
		appConfig.Database.Dsn = defaults["database.dsn"].(string)
	}
	i18n.Init(appConfig.Language)
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func applyDefaultFlags(cmd *cobra.Command) {
	if cmd.Flags().Lookup("database.type") == nil {
		cmd.Flags().String("database.type", "sqlite", "Database type (sqlite, postgres, mysql)")
	}
	if cmd.Flags().Lookup("database.dsn") == nil {
		cmd.Flags().String("database.dsn", "./blockmove.db", "Database connection string (DSN)")
	}
}

func getConfigPathFromCli(cmd *cobra.Command) (*string, error) {
	if !cmd.Flags().Changed("config") {
		return nil, nil
	}
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("could not read --config flag: %w", err)
	}
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file specified via --config flag not found or is not accessible: %w", err)
	}
	return &path, nil
}

// NewRootCmd builds the blockmove command tree. Running without a
// subcommand serves the game.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blockmove",
		Short: "Falling blocks over SSH",
		Long: `blockmove is an SSH server that lets holders of an authorized public key
play a falling-block game in their terminal. Keys are read from the file
named by SECRETS_LOCATION.

Running without a subcommand starts the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if showVersionFlag {
				fmt.Fprintln(cmd.OutOrStdout(), compositeVersion())
				os.Exit(0)
			}
			if verbose {
				logging.SetDebug(true)
				db.SetDebug(true)
			}
			return setupDefaultServices(cmd, args)
		},
		RunE: runServeCmd,
	}
	cmd.Version = compositeVersion()

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(&showVersionFlag, "version", "V", false, "Print version and exit")
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	cmd.PersistentFlags().String("language", "en", `Player-facing language ("en", "de")`)
	applyDefaultFlags(cmd)
	addServeFlags(cmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		// Skip config loading; version must work without a usable config.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			info, _ := debug.ReadBuildInfo()
			v, c, d := resolveBuildVersion(info)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version: %s\n", v)
			fmt.Fprintf(out, "commit: %s\n", c)
			if d != "" {
				fmt.Fprintf(out, "built: %s\n", d)
			}
		},
	}

	cmd.AddCommand(
		newServeCmd(),
		newKeysCmd(),
		newAuditCmd(),
		newSessionsCmd(),
		newDBCmd(),
		newConfigCmd(),
		versionCmd,
	)
	return cmd
}

func compositeVersion() string {
	info, _ := debug.ReadBuildInfo()
	v, c, d := resolveBuildVersion(info)
	if c != "" && c != "dev" {
		v = v + " (" + c + ")"
	}
	if d != "" {
		v = v + " built: " + d
	}
	return v
}

// resolveBuildVersion prefers linker-provided values, then module and VCS
// information embedded by the Go toolchain.
func resolveBuildVersion(info *debug.BuildInfo) (string, string, string) {
	resolvedVersion := version
	resolvedCommit := gitCommit
	resolvedDate := buildDate

	if info != nil {
		if resolvedVersion == "dev" {
			if info.Main.Version != "" && info.Main.Version != "(devel)" {
				resolvedVersion = info.Main.Version
			} else {
				for _, dep := range info.Deps {
					if dep.Path == info.Main.Path && dep.Version != "" && dep.Version != "(devel)" {
						resolvedVersion = dep.Version
						break
					}
				}
			}
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" && resolvedCommit == "dev" {
					resolvedCommit = s.Value
				}
			case "vcs.time":
				if s.Value != "" && resolvedDate == "" {
					resolvedDate = s.Value
				}
			}
		}
	}

	if resolvedVersion == "dev" && gitCommit != "dev" && gitCommit != "" {
		resolvedVersion = gitCommit
	}
	return resolvedVersion, resolvedCommit, resolvedDate
}
