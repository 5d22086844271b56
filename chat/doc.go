// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat is a room-based chat service built on the messaging
// package.
//
// Clients are identified by their transport address. A [Client] logs
// in, joins rooms, and sends messages; every request is a
// SendAndAwaitReply to the [Server], which answers with an
// [OperationResponse] or a listing. Chat messages and room
// announcements reach clients as plain DATA sends from the server.
//
// The server handles one request at a time on the messaging.Server
// consumer goroutine, so [State] needs no locking. Room memberships
// survive restarts: Stop logs every client out and saves memberships
// to SQLite through [Store]; Start loads them back with every client
// offline.
//
// The wire protocol is a closed set of [Exchange] types, framed as a
// kind-tagged CBOR map by [Encode] and [Decode].
package chat
