package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cfg "github.com/toeirei/blockmove/internal/config"
)

// isolate points the user config dir at an empty temp dir and clears the
// environment variables LoadConfig consults.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)
	t.Setenv("HOME", tmp)
	for _, e := range os.Environ() {
		name, _, _ := strings.Cut(e, "=")
		if strings.HasPrefix(name, "BLOCKMOVE_") || name == cfg.SecretsEnv {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	return tmp
}

func TestLoadConfig_NoFileReturnsDefaultsAndNotFound(t *testing.T) {
	isolate(t)

	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	var nf viper.ConfigFileNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected ConfigFileNotFoundError, got: %T %v", err, err)
	}
	if got.Listen != ":22" {
		t.Fatalf("listen = %q, want :22", got.Listen)
	}
	if got.Session.IdleTimeout != time.Hour {
		t.Fatalf("idle timeout = %v, want 1h", got.Session.IdleTimeout)
	}
	if got.Auth.RejectionDelay != 3*time.Second {
		t.Fatalf("rejection delay = %v, want 3s", got.Auth.RejectionDelay)
	}
	if got.Game.Width != 10 || got.Game.Height != 20 {
		t.Fatalf("board = %dx%d, want 10x20", got.Game.Width, got.Game.Height)
	}
	if got.Server.MaxSessions != 64 || got.Server.MaxPending != 32 {
		t.Fatalf("session limits = %d/%d, want 64/32", got.Server.MaxSessions, got.Server.MaxPending)
	}
}

func TestLoadConfig_ReadsExplicitFile(t *testing.T) {
	tmp := isolate(t)
	yaml := "database:\n  type: postgres\n  dsn: postgresql://user@/db\nlanguage: de\ngame:\n  tick: 250ms\n"
	file := filepath.Join(tmp, "cfg.yaml")
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), &file)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if got.Database.Type != "postgres" {
		t.Fatalf("expected postgres, got %q", got.Database.Type)
	}
	if got.Language != "de" {
		t.Fatalf("expected de, got %q", got.Language)
	}
	if got.Game.Tick != 250*time.Millisecond {
		t.Fatalf("tick = %v, want 250ms", got.Game.Tick)
	}
	if got.Game.Height != 20 {
		t.Fatalf("unset keys should keep defaults, height = %d", got.Game.Height)
	}
}

func TestLoadConfig_BrokenFileIsAnError(t *testing.T) {
	tmp := isolate(t)
	file := filepath.Join(tmp, "broken.yaml")
	if err := os.WriteFile(file, []byte("listen: [unclosed\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	_, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), &file)
	if err == nil {
		t.Fatal("expected parse error")
	}
	var nf viper.ConfigFileNotFoundError
	if errors.As(err, &nf) {
		t.Fatalf("parse error reported as not found: %v", err)
	}
}

func TestLoadConfig_SecretsLocationFromBareEnv(t *testing.T) {
	isolate(t)
	t.Setenv(cfg.SecretsEnv, "/run/secrets/authorized_keys")

	got, _ := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	if got.SecretsLocation != "/run/secrets/authorized_keys" {
		t.Fatalf("secrets_location = %q", got.SecretsLocation)
	}
}

func TestLoadConfig_PrefixedEnvAndNestedKeys(t *testing.T) {
	isolate(t)
	t.Setenv("BLOCKMOVE_LISTEN", ":2022")
	t.Setenv("BLOCKMOVE_SERVER_MAX_SESSIONS", "3")

	got, _ := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	if got.Listen != ":2022" {
		t.Fatalf("listen = %q", got.Listen)
	}
	if got.Server.MaxSessions != 3 {
		t.Fatalf("max sessions = %d", got.Server.MaxSessions)
	}
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	isolate(t)
	t.Setenv("BLOCKMOVE_LISTEN", ":2022")

	cmd := &cobra.Command{}
	cmd.Flags().String("listen", ":22", "")
	cmd.Flags().Duration("session.idle-timeout", time.Hour, "")
	if err := cmd.Flags().Set("listen", ":2222"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("session.idle-timeout", "5m"); err != nil {
		t.Fatal(err)
	}

	got, _ := cfg.LoadConfig[cfg.Config](cmd, cfg.Defaults(), nil)
	if got.Listen != ":2222" {
		t.Fatalf("listen = %q, want flag value", got.Listen)
	}
	if got.Session.IdleTimeout != 5*time.Minute {
		t.Fatalf("idle timeout = %v, want 5m", got.Session.IdleTimeout)
	}
}

func TestWriteConfigFile_RoundTrips(t *testing.T) {
	isolate(t)

	c, _ := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	c.SecretsLocation = "/srv/keys"
	c.Game.Tick = 600 * time.Millisecond
	if err := cfg.WriteConfigFile(&c, false); err != nil {
		t.Fatalf("WriteConfigFile failed: %v", err)
	}

	path, err := cfg.GetConfigPath(false)
	if err != nil {
		t.Fatalf("GetConfigPath failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected config file at %s, stat error: %v", path, err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.SecretsLocation != "/srv/keys" || got.Game.Tick != 600*time.Millisecond {
		t.Fatalf("reloaded %+v", got)
	}
}

func TestGetConfigPath_User(t *testing.T) {
	tmp := isolate(t)
	path, err := cfg.GetConfigPath(false)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(tmp, "blockmove", "blockmove.yaml")
	if path != want {
		t.Fatalf("GetConfigPath() = %v, want %v", path, want)
	}
}

func TestLoadDotEnv(t *testing.T) {
	tmp := isolate(t)
	t.Setenv("BLOCKMOVE_DOTENV_PROBE", "")
	os.Unsetenv("BLOCKMOVE_DOTENV_PROBE")

	if err := cfg.LoadDotEnv(filepath.Join(tmp, "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}

	file := filepath.Join(tmp, ".env")
	if err := os.WriteFile(file, []byte("BLOCKMOVE_DOTENV_PROBE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := cfg.LoadDotEnv(file); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("BLOCKMOVE_DOTENV_PROBE"); got != "from-file" {
		t.Fatalf("probe = %q", got)
	}
}

func TestValidate(t *testing.T) {
	isolate(t)
	c, _ := cfg.LoadConfig[cfg.Config](&cobra.Command{}, cfg.Defaults(), nil)
	err := c.Validate()
	if err == nil || !strings.Contains(err.Error(), cfg.SecretsEnv) {
		t.Fatalf("expected missing secrets error, got %v", err)
	}
	c.SecretsLocation = "/srv/keys"
	if err := c.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	c.Game.Width = 2
	if err := c.Validate(); err == nil {
		t.Fatal("tiny board accepted")
	}
}
