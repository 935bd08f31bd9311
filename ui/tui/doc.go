// Copyright (c) 2026 Blockmove Team
// Blockmove - falling blocks over SSH
// This source code is licensed under the MIT license found in the LICENSE file.
// Package tui hosts the per-connection terminal front-end. Presentation and
// key handling live here; game rules stay in internal/board and the session
// lane in internal/session.
package tui
