// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// courier is the command-line chat client.
//
// A client's identity is its UDP address, so --listen should be the
// same across invocations for room memberships to follow you:
//
//	courier --listen 127.0.0.1:7401 join lobby
//	courier --listen 127.0.0.1:7401 say lobby "hello, everyone"
//	courier --listen 127.0.0.1:7401 listen
//
// Every command logs in, does its work, and logs out. listen stays
// logged in and prints messages and announcements until interrupted.
package main
