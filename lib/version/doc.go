// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for courier
// binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X ([GitCommit], [GitDirty], [BuildTime], [Version]). They
// default to "unknown" / "0.1.0-dev" in development builds and tests.
//
// [Info] formats the one-line --version output; [Full] adds the Go
// toolchain, platform, and a BLAKE3 digest of the running executable
// so two deployed binaries can be compared without trusting their
// version strings.
package version
