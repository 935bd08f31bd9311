// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

package credstore

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/toeirei/blockmove/internal/logging"
)

// reloadDebounce collapses the burst of events editors emit on save.
const reloadDebounce = 200 * time.Millisecond

// Watch reloads the store whenever its file changes on disk or the process
// receives SIGHUP. It blocks until ctx is done. The parent directory is
// watched so atomic replace-by-rename is picked up as well. onReload, when
// set, is called after every attempt with the new snapshot or the error.
func (s *Store) Watch(ctx context.Context, onReload func(*Snapshot, error)) error {
	if s.path == "" {
		return ErrNotLoaded
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create credentials watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	base := filepath.Base(s.path)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	log := logging.With("credstore")
	var debounce <-chan time.Time
	reload := func(trigger string) {
		snap, err := s.Reload()
		if err != nil {
			log.Error("reload failed, keeping previous keys", "trigger", trigger, "err", err)
		} else {
			log.Info("authorized keys reloaded", "trigger", trigger, "keys", snap.Len())
		}
		if onReload != nil {
			onReload(snap, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			reload("sighup")
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				debounce = time.After(reloadDebounce)
			}
		case <-debounce:
			debounce = nil
			reload("file")
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("credentials watcher error", "err", err)
		}
	}
}
