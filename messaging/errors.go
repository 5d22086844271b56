// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "errors"

var (
	// ErrInvalidArgument is returned for an empty destination, a nil
	// payload, or an envelope kind callers may not send.
	ErrInvalidArgument = errors.New("messaging: invalid argument")

	// ErrChannelClosed is returned by operations on a closed Channel,
	// including sends that were blocked when Close was called.
	ErrChannelClosed = errors.New("messaging: channel closed")

	// ErrAlreadyRunning is returned by Server.Start on a running server.
	ErrAlreadyRunning = errors.New("messaging: server already running")

	// ErrNotRunning is returned by Server operations while the server
	// is stopped.
	ErrNotRunning = errors.New("messaging: server not running")

	// ErrStopped is returned by Client operations after Stop.
	ErrStopped = errors.New("messaging: client stopped")

	// ErrCorruptFrame is returned by Decode when a frame is
	// structurally valid CBOR but fails validation: a bad digest, an
	// unknown kind, or a payload that does not decompress to its
	// recorded size.
	ErrCorruptFrame = errors.New("messaging: corrupt frame")
)
