// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Package buildvars holds values injected at link time, e.g.
//
//	go build -ldflags "-X github.com/toeirei/blockmove/buildvars.Version=v1.0.0 -X github.com/toeirei/blockmove/buildvars.Commit=$(git rev-parse --short HEAD)"
package buildvars

var (
	// Version is the release tag. Empty for local builds.
	Version string
	// Commit is the short commit SHA.
	Commit string
	// Date is the build time in RFC3339.
	Date string
)

// VersionOrDefault returns Version if set, otherwise def.
func VersionOrDefault(def string) string {
	if len(Version) > 0 {
		return Version
	}
	return def
}

// CommitOrDefault returns Commit if set, otherwise def.
func CommitOrDefault(def string) string {
	if len(Commit) > 0 {
		return Commit
	}
	return def
}
