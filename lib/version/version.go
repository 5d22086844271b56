// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/zeebo/blake3"
)

// These variables are set via -ldflags at build time:
//
//	go build -ldflags "-X github.com/bureau-foundation/courier/lib/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	// GitCommit is the short git SHA of the build.
	GitCommit = "unknown"

	// GitDirty indicates whether there were uncommitted changes.
	GitDirty = "false"

	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"

	// Version is the semantic version. This is set manually for releases.
	Version = "0.1.0-dev"
)

// Info returns a formatted version string suitable for --version output.
func Info() string {
	dirty := ""
	if GitDirty == "true" {
		dirty = "-dirty"
	}
	return fmt.Sprintf("%s (%s%s, %s)", Version, GitCommit, dirty, BuildTime)
}

// Full returns Info plus the Go version, platform, and the digest of
// the running binary.
func Full() string {
	digest, err := BinaryDigest()
	if err != nil {
		digest = "unavailable: " + err.Error()
	}
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s\n  Binary: %s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH, digest)
}

// Short returns just the version number.
func Short() string {
	return Version
}

// BinaryDigest returns the hex BLAKE3-256 digest of the running
// executable.
func BinaryDigest() (string, error) {
	executable, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolving own executable path: %w", err)
	}
	return FileDigest(executable)
}

// FileDigest returns the hex BLAKE3-256 digest of the file at path.
func FileDigest(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
