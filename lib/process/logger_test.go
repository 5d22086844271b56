// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buffer bytes.Buffer
	logger := NewLogger(&buffer, slog.LevelInfo, "courier-server")

	logger.Debug("hidden")
	logger.Info("shown", "address", "127.0.0.1:7400")

	output := buffer.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("debug record written at info level: %q", output)
	}
	for _, want := range []string{"msg=shown", "binary=courier-server", "address=127.0.0.1:7400"} {
		if !strings.Contains(output, want) {
			t.Errorf("output %q missing %q", output, want)
		}
	}
}
