// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"fmt"
	"math"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/toeirei/blockmove/internal/assets"
	"github.com/toeirei/blockmove/internal/auth"
	"github.com/toeirei/blockmove/internal/board"
	"github.com/toeirei/blockmove/internal/config"
	"github.com/toeirei/blockmove/internal/credstore"
	"github.com/toeirei/blockmove/internal/db"
	"github.com/toeirei/blockmove/internal/i18n"
	"github.com/toeirei/blockmove/internal/logging"
	"github.com/toeirei/blockmove/internal/server"
	"github.com/toeirei/blockmove/internal/session"
	"github.com/toeirei/blockmove/internal/sshkey"
	"golang.org/x/crypto/ssh"
)

const handshakeTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: i18n.T("cli.serve.short"),
		Long: `Loads the authorized keys named by SECRETS_LOCATION, opens the database and
serves the game over SSH until SIGINT or SIGTERM. A malformed or unreadable
key file aborts startup.`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}
	addServeFlags(cmd)
	applyDefaultFlags(cmd)
	return cmd
}

func addServeFlags(cmd *cobra.Command) {
	d := config.Defaults()
	f := cmd.Flags()
	f.String("listen", d["listen"].(string), "Address to listen on")
	f.String("secrets-location", "", "authorized_keys file (overrides "+config.SecretsEnv+")")
	f.String("host-key", d["host_key"].(string), "SSH host private key; generated when missing")
	f.Bool("watch-secrets", d["watch_secrets"].(bool), "Reload the authorized_keys file on change or SIGHUP")
}

func runServeCmd(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, appConfig)
}

// serve wires every component from c and blocks until ctx is done.
func serve(ctx context.Context, c config.Config) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := credstore.Open(c.SecretsLocation)
	if err != nil {
		logging.Errorf("%s", i18n.T("config.error_credentials", err))
		return err
	}
	logging.Infof("%s", i18n.T("cli.keys.valid", store.Snapshot().Len(), store.Path()))

	st, err := db.Open(c.Database.Type, c.Database.Dsn)
	if err != nil {
		logging.Errorf("%s", i18n.T("config.error_init_db", err))
		return err
	}
	defer func() { _ = st.Close() }()

	signer, created, err := sshkey.LoadOrCreateHostKey(c.HostKey)
	if err != nil {
		return err
	}
	if created {
		logging.Infof("generated host key %s (%s)", c.HostKey, ssh.FingerprintSHA256(signer.PublicKey()))
	}

	authn := auth.New(store, st, auth.WithRejectionDelay(c.Auth.RejectionDelay))
	sprites := assets.LoadSet(map[string]string{
		"normal": c.Assets.Normal,
		"scared": c.Assets.Scared,
	})

	srv, err := server.New(serverConfig(c), server.Deps{
		Signer:        signer,
		Authenticator: authn,
		Store:         store,
		Audit:         st,
		Recorder:      st,
		Sprites:       sprites,
	})
	if err != nil {
		return err
	}

	logging.Infof("%s", i18n.T("cli.serve.listening", c.Listen))
	return srv.ListenAndServe(ctx, c.Listen)
}

func serverConfig(c config.Config) server.Config {
	return server.Config{
		Session: session.Config{
			Board:        board.Config{Width: c.Game.Width, Height: c.Game.Height},
			Threshold:    c.Game.Threshold,
			TickInterval: c.Game.Tick,
			IdleTimeout:  c.Session.IdleTimeout,
		},
		MaxSessions:      c.Server.MaxSessions,
		MaxPending:       c.Server.MaxPending,
		AcceptRate:       c.Server.AcceptRate,
		AcceptBurst:      int(math.Ceil(c.Server.AcceptRate)),
		HandshakeTimeout: handshakeTimeout,
		WatchSecrets:     c.WatchSecrets,
	}
}
