// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for blockmove.
//
// Usage:
//
//	SECRETS_LOCATION=./authorized_keys ./blockmove [flags]
//	./blockmove keys check ./authorized_keys
//
// Without a subcommand the SSH game server starts. See --help for options.
package main

import (
	"os"

	"github.com/toeirei/blockmove/ui/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
