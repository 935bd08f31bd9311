// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package cli implements the blockmove command line using Cobra. It loads
// configuration, wires the credential store, database and SSH server, and
// offers operator commands for keys, the audit trail and the database.
package cli
