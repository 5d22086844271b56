// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"io"
	"log/slog"
)

// NewLogger returns a text slog logger writing to w at level, tagged
// with the binary's name.
func NewLogger(w io.Writer, level slog.Level, binary string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})).With("binary", binary)
}
