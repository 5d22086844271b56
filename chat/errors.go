// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "errors"

var (
	// ErrAlreadyInRoom is returned by Client.JoinRoom for a room the
	// client has already joined.
	ErrAlreadyInRoom = errors.New("chat: already in room")

	// ErrNotInRoom is returned by Client.LeaveRoom and
	// Client.SendMessage for a room the client has not joined.
	ErrNotInRoom = errors.New("chat: not in room")

	// ErrNoSuchRoom is returned by Client.ClientsInRoom when no online
	// client is in the room.
	ErrNoSuchRoom = errors.New("chat: no such room")

	// ErrNotLoggedIn is returned by Client operations other than Login
	// while the client is logged out.
	ErrNotLoggedIn = errors.New("chat: not logged in")

	// ErrAlreadyLoggedIn is returned by Client.Login on a logged-in
	// client.
	ErrAlreadyLoggedIn = errors.New("chat: already logged in")

	// ErrInvalidArgument is returned for empty room names and nil
	// callbacks.
	ErrInvalidArgument = errors.New("chat: invalid argument")

	// ErrUnexpectedResponse is returned when the server answers a
	// request with the wrong exchange type.
	ErrUnexpectedResponse = errors.New("chat: unexpected response")

	// ErrUnknownExchange is returned by Decode for a frame whose kind
	// is not part of the protocol.
	ErrUnknownExchange = errors.New("chat: unknown exchange kind")
)
