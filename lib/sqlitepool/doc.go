// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the SQLite connection pool courier
// services store local state in.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool. Every connection is
// initialized with the same pragmas, then with the caller's Schema
// script, then with an optional OnConnect hook:
//
//   - journal_mode=WAL: readers never block the writer.
//   - synchronous=NORMAL: commits survive a process crash without an
//     fsync per transaction.
//   - busy_timeout=5000: wait for the write lock instead of failing
//     with SQLITE_BUSY.
//   - temp_store=MEMORY.
//
// Connections are not safe for concurrent use. [Pool.Do] borrows one
// for the duration of a callback; [Pool.Transaction] additionally wraps
// the callback in an IMMEDIATE transaction that commits when the
// callback returns nil and rolls back otherwise.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   statePath,
//	    Schema: `CREATE TABLE IF NOT EXISTS memberships (...);`,
//	    Logger: logger,
//	})
//	...
//	err = pool.Transaction(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, "DELETE FROM memberships", nil)
//	})
package sqlitepool
