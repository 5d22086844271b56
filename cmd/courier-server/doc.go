// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// courier-server runs the chat server on a UDP socket until interrupted.
//
// Configuration comes from --config, else COURIER_CONFIG, else the
// built-in defaults (listen on 127.0.0.1:7400, memberships saved to
// ~/.local/state/courier/chat.db). Flags override the file:
//
//	courier-server --listen 0.0.0.0:7400 --state-path /var/lib/courier/chat.db
//
// On SIGINT or SIGTERM the server logs every client out and saves room
// memberships; the next start restores them. --clean discards the saved
// memberships before starting.
package main
