// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/courier/lib/sqlitepool"
)

const storeSchema = `
CREATE TABLE IF NOT EXISTS memberships (
	client TEXT NOT NULL,
	room   TEXT NOT NULL,
	PRIMARY KEY (client, room)
) WITHOUT ROWID;
`

// Store persists room memberships in SQLite.
type Store struct {
	pool *sqlitepool.Pool
}

// OpenStore opens (creating if needed) the database at path. The parent
// directory must exist.
func OpenStore(path string, logger *slog.Logger) (*Store, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Schema: storeSchema,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: opening store: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Load returns every saved membership, sorted by client then room.
func (s *Store) Load(ctx context.Context) ([]Membership, error) {
	var memberships []Membership
	err := s.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"SELECT client, room FROM memberships ORDER BY client, room",
			&sqlitex.ExecOptions{
				ResultFunc: func(stmt *sqlite.Stmt) error {
					memberships = append(memberships, Membership{
						Client: stmt.ColumnText(0),
						Room:   stmt.ColumnText(1),
					})
					return nil
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("chat: loading memberships: %w", err)
	}
	return memberships, nil
}

// Save replaces the saved memberships in one transaction.
func (s *Store) Save(ctx context.Context, memberships []Membership) error {
	err := s.pool.Transaction(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, "DELETE FROM memberships", nil); err != nil {
			return err
		}
		for _, membership := range memberships {
			err := sqlitex.Execute(conn,
				"INSERT INTO memberships (client, room) VALUES (?, ?)",
				&sqlitex.ExecOptions{Args: []any{membership.Client, membership.Room}})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("chat: saving memberships: %w", err)
	}
	return nil
}

// Clean deletes every saved membership.
func (s *Store) Clean(ctx context.Context) error {
	return s.Save(ctx, nil)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.pool.Close()
}
