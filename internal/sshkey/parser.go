// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package sshkey parses authorized_keys material and manages the server's
// host key.
package sshkey

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// ErrNoKeyType is returned when a line carries no recognizable key algorithm.
var ErrNoKeyType = errors.New("no valid SSH key type found in line")

// Entry is one decoded authorized_keys line.
type Entry struct {
	Key     ssh.PublicKey
	Comment string
	Options []string
}

// Fingerprint returns the SHA256 fingerprint of the entry's key.
func (e Entry) Fingerprint() string {
	return ssh.FingerprintSHA256(e.Key)
}

// Parse splits a raw public key string (like one from an authorized_keys file)
// into its three core components: algorithm, key data, and comment.
// Leading options (e.g. from="...",command="...") are skipped.
func Parse(rawKey string) (algorithm, keyData, comment string, err error) {
	fields := strings.Fields(rawKey)
	if len(fields) == 0 {
		err = fmt.Errorf("empty line")
		return
	}

	keyStartIndex := -1
	for i, field := range fields {
		if isKeyType(field) {
			keyStartIndex = i
			break
		}
	}

	if keyStartIndex == -1 {
		err = ErrNoKeyType
		return
	}

	if len(fields) < keyStartIndex+2 {
		err = fmt.Errorf("invalid public key format: missing key data after algorithm")
		return
	}

	algorithm = fields[keyStartIndex]
	keyData = fields[keyStartIndex+1]
	if len(fields) > keyStartIndex+2 {
		comment = strings.Join(fields[keyStartIndex+2:], " ")
	}

	return
}

func isKeyType(field string) bool {
	return strings.HasPrefix(field, "ssh-") ||
		strings.HasPrefix(field, "ecdsa-") ||
		strings.HasPrefix(field, "sk-")
}

// ParseLine decodes a single authorized_keys line. Blank lines and comments
// must be filtered by the caller. The error explains which part of the line
// was wrong so file loaders can point at it.
func ParseLine(line string) (Entry, error) {
	key, comment, options, rest, err := ssh.ParseAuthorizedKey([]byte(line))
	if err != nil {
		alg, data, _, perr := Parse(line)
		if perr != nil {
			return Entry{}, perr
		}
		if _, derr := base64.StdEncoding.DecodeString(data); derr != nil {
			return Entry{}, fmt.Errorf("key data for %s is not valid base64: %w", alg, derr)
		}
		return Entry{}, fmt.Errorf("cannot decode %s key: %w", alg, err)
	}
	if len(bytes.TrimSpace(rest)) > 0 {
		return Entry{}, fmt.Errorf("unexpected trailing data after key")
	}
	return Entry{Key: key, Comment: comment, Options: options}, nil
}

// FingerprintWire returns the SHA256 fingerprint for raw SSH wire-format key
// bytes without decoding them. It is safe to call on malformed input.
func FingerprintWire(wire []byte) string {
	sum := sha256.Sum256(wire)
	return "SHA256:" + base64.RawStdEncoding.EncodeToString(sum[:])
}
