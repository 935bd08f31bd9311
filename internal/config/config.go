// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads blockmove settings from defaults, YAML files, the
// environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// SecretsEnv names the environment variable that points at the
// authorized_keys file. It is read without the BLOCKMOVE_ prefix.
const SecretsEnv = "SECRETS_LOCATION"

// Config is the full set of blockmove settings.
type Config struct {
	Listen          string `mapstructure:"listen" yaml:"listen"`
	SecretsLocation string `mapstructure:"secrets_location" yaml:"secrets_location"`
	HostKey         string `mapstructure:"host_key" yaml:"host_key"`
	Language        string `mapstructure:"language" yaml:"language"`
	WatchSecrets    bool   `mapstructure:"watch_secrets" yaml:"watch_secrets"`

	Database struct {
		Type string `mapstructure:"type" yaml:"type"`
		Dsn  string `mapstructure:"dsn" yaml:"dsn"`
	} `mapstructure:"database" yaml:"database"`

	Game struct {
		Width     int           `mapstructure:"width" yaml:"width"`
		Height    int           `mapstructure:"height" yaml:"height"`
		Tick      time.Duration `mapstructure:"tick" yaml:"tick"`
		Threshold int           `mapstructure:"threshold" yaml:"threshold"`
	} `mapstructure:"game" yaml:"game"`

	Session struct {
		IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	} `mapstructure:"session" yaml:"session"`

	Auth struct {
		RejectionDelay time.Duration `mapstructure:"rejection_delay" yaml:"rejection_delay"`
	} `mapstructure:"auth" yaml:"auth"`

	Assets struct {
		Normal string `mapstructure:"normal" yaml:"normal"`
		Scared string `mapstructure:"scared" yaml:"scared"`
	} `mapstructure:"assets" yaml:"assets"`

	Server struct {
		MaxSessions int     `mapstructure:"max_sessions" yaml:"max_sessions"`
		MaxPending  int     `mapstructure:"max_pending" yaml:"max_pending"`
		AcceptRate  float64 `mapstructure:"accept_rate" yaml:"accept_rate"`
	} `mapstructure:"server" yaml:"server"`
}

// Defaults returns the built-in value for every key.
func Defaults() map[string]any {
	return map[string]any{
		"listen":               ":22",
		"secrets_location":     "",
		"host_key":             "./host_key",
		"language":             "en",
		"watch_secrets":        true,
		"database.type":        "sqlite",
		"database.dsn":         "./blockmove.db",
		"game.width":           10,
		"game.height":          20,
		"game.tick":            "800ms",
		"game.threshold":       0,
		"session.idle_timeout": "1h",
		"auth.rejection_delay": "3s",
		"assets.normal":        "normal.png",
		"assets.scared":        "scared.png",
		"server.max_sessions":  64,
		"server.max_pending":   32,
		"server.accept_rate":   20.0,
	}
}

// GetConfigPath returns the user or system path of blockmove.yaml.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "Blockmove")
		default:
			configDir = "/etc/blockmove"
		}
	} else {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(dir, "blockmove")
	}
	return filepath.Join(configDir, "blockmove.yaml"), nil
}

// LoadDotEnv loads a .env file into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadConfig layers defaults, the first blockmove.yaml found (or the file
// named by explicitPath), BLOCKMOVE_* environment variables and the flags
// of cmd, then decodes the result into T. When no file is found the
// decoded value is still returned together with viper.ConfigFileNotFoundError.
func LoadConfig[T any](cmd *cobra.Command, defaults map[string]any, explicitPath *string) (T, error) {
	var c T
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("blockmove")
	v.SetConfigType("yaml")
	if explicitPath != nil && *explicitPath != "" {
		v.SetConfigFile(*explicitPath)
	}
	if p, err := GetConfigPath(false); err == nil {
		v.AddConfigPath(filepath.Dir(p))
	}
	if p, err := GetConfigPath(true); err == nil {
		v.AddConfigPath(filepath.Dir(p))
	}
	v.AddConfigPath(".")

	var notFound error
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return c, err
		}
		notFound = err
	}

	v.SetEnvPrefix("blockmove")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("secrets_location", "BLOCKMOVE_SECRETS_LOCATION", SecretsEnv); err != nil {
		return c, err
	}

	if cmd != nil {
		var bindErr error
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
		})
		if bindErr != nil {
			return c, bindErr
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, notFound
}

// WriteConfigFile stores c as YAML at the user or system config path.
func WriteConfigFile[T any](c *T, system bool) error {
	path, err := GetConfigPath(system)
	if err != nil {
		return err
	}
	return WriteConfigTo(c, path)
}

// WriteConfigTo stores c as YAML at path, creating parent directories.
func WriteConfigTo[T any](c *T, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", dir, err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.SecretsLocation == "" {
		errs = append(errs, fmt.Errorf("%s is not set", SecretsEnv))
	}
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	if c.Game.Width < 4 || c.Game.Height < 4 {
		errs = append(errs, fmt.Errorf("board %dx%d is too small", c.Game.Width, c.Game.Height))
	}
	if c.Game.Tick <= 0 {
		errs = append(errs, errors.New("game.tick must be positive"))
	}
	if c.Session.IdleTimeout <= 0 {
		errs = append(errs, errors.New("session.idle_timeout must be positive"))
	}
	if c.Auth.RejectionDelay < 0 {
		errs = append(errs, errors.New("auth.rejection_delay must not be negative"))
	}
	return errors.Join(errs...)
}
