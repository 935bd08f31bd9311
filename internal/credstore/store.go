// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package credstore holds the set of public keys allowed to open a session.
// A loaded set is an immutable Snapshot; the Store publishes snapshots through
// an atomic pointer so concurrent readers never see a partial update.
package credstore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/toeirei/blockmove/internal/sshkey"
	"golang.org/x/crypto/ssh"
)

// ConfigError reports an unreadable credential source or a malformed entry.
// Line is zero when the whole file could not be read.
type ConfigError struct {
	Path string
	Line int
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("credentials %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("credentials %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Snapshot is an immutable set of authorized keys keyed by their SSH wire
// encoding (algorithm tag + key material).
type Snapshot struct {
	keys     map[string]sshkey.Entry
	path     string
	loadedAt time.Time
}

// Contains reports whether key is in the snapshot. Matching is exact on the
// wire encoding.
func (s *Snapshot) Contains(key ssh.PublicKey) bool {
	if s == nil || key == nil {
		return false
	}
	return s.ContainsWire(key.Marshal())
}

// ContainsWire is Contains for raw wire bytes that have not been decoded.
func (s *Snapshot) ContainsWire(wire []byte) bool {
	if s == nil {
		return false
	}
	_, ok := s.keys[string(wire)]
	return ok
}

// Lookup returns the entry for wire bytes, if present.
func (s *Snapshot) Lookup(wire []byte) (sshkey.Entry, bool) {
	if s == nil {
		return sshkey.Entry{}, false
	}
	e, ok := s.keys[string(wire)]
	return e, ok
}

// Len returns the number of distinct keys.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Path is the file the snapshot was loaded from.
func (s *Snapshot) Path() string { return s.path }

// LoadedAt is when the snapshot was read.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Entries returns the snapshot's entries in no particular order.
func (s *Snapshot) Entries() []sshkey.Entry {
	out := make([]sshkey.Entry, 0, len(s.keys))
	for _, e := range s.keys {
		out = append(out, e)
	}
	return out
}

// Load reads an authorized_keys file into a new snapshot. Blank lines and
// lines starting with '#' are ignored. Any undecodable entry fails the whole
// load.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return parse(path, data)
}

func parse(path string, data []byte) (*Snapshot, error) {
	snap := &Snapshot{
		keys:     make(map[string]sshkey.Entry),
		path:     path,
		loadedAt: time.Now(),
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := sshkey.ParseLine(line)
		if err != nil {
			return nil, &ConfigError{Path: path, Line: lineNo, Err: err}
		}
		snap.keys[string(e.Key.Marshal())] = e
	}
	if err := sc.Err(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return snap, nil
}

// ErrNotLoaded is returned by Reload when the store has no path.
var ErrNotLoaded = errors.New("credential store has no source path")

// Store publishes the current snapshot.
type Store struct {
	path    string
	current atomic.Pointer[Snapshot]
}

// Open loads path and returns a Store serving it.
func Open(path string) (*Store, error) {
	snap, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := &Store{path: path}
	s.current.Store(snap)
	return s, nil
}

// NewStatic returns a Store serving snap with no backing file. Reload on
// such a store fails with ErrNotLoaded.
func NewStatic(snap *Snapshot) *Store {
	s := &Store{}
	s.current.Store(snap)
	return s
}

// Snapshot returns the currently published snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Contains checks key against the current snapshot.
func (s *Store) Contains(key ssh.PublicKey) bool {
	return s.current.Load().Contains(key)
}

// ContainsWire checks raw wire bytes against the current snapshot.
func (s *Store) ContainsWire(wire []byte) bool {
	return s.current.Load().ContainsWire(wire)
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Reload reads the backing file again and swaps it in. On error the previous
// snapshot stays published.
func (s *Store) Reload() (*Snapshot, error) {
	if s.path == "" {
		return nil, ErrNotLoaded
	}
	snap, err := Load(s.path)
	if err != nil {
		return nil, err
	}
	s.current.Store(snap)
	return snap, nil
}
