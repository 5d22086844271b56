// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	originalCommit, originalDirty := GitCommit, GitDirty
	t.Cleanup(func() { GitCommit, GitDirty = originalCommit, originalDirty })

	GitCommit = "abc1234"
	GitDirty = "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("Info() = %q, want it to mention abc1234-dirty", got)
	}

	GitDirty = "false"
	if got := Info(); strings.Contains(got, "dirty") {
		t.Errorf("Info() = %q for a clean build", got)
	}
}

func TestFull(t *testing.T) {
	full := Full()
	for _, want := range []string{Info(), "Go: ", "Platform: ", "Binary: "} {
		if !strings.Contains(full, want) {
			t.Errorf("Full() = %q, missing %q", full, want)
		}
	}
}

func TestFileDigest(t *testing.T) {
	directory := t.TempDir()
	first := filepath.Join(directory, "first")
	second := filepath.Join(directory, "second")
	if err := os.WriteFile(first, []byte("courier"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("courier!"), 0644); err != nil {
		t.Fatal(err)
	}

	digestA, err := FileDigest(first)
	if err != nil {
		t.Fatalf("FileDigest: %v", err)
	}
	if len(digestA) != 64 {
		t.Errorf("digest length = %d, want 64 hex characters", len(digestA))
	}
	again, _ := FileDigest(first)
	if again != digestA {
		t.Error("FileDigest is not deterministic")
	}
	digestB, _ := FileDigest(second)
	if digestB == digestA {
		t.Error("different files produced the same digest")
	}

	if _, err := FileDigest(filepath.Join(directory, "missing")); err == nil {
		t.Error("FileDigest of a missing file succeeded")
	}
}
