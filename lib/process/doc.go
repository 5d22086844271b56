// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for courier binaries:
// fatal error reporting before the structured logger exists, and the
// conventional slog handler every binary logs through.
package process
