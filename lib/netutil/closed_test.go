// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"net"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

func TestIsClosedError(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	conn.Close()
	_, _, readErr := conn.ReadFrom(make([]byte, 16))

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"read after close", readErr, true},
		{"wrapped", fmt.Errorf("reading: %w", net.ErrClosed), true},
		{"other", errors.New("boom"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsClosedError(test.err); got != test.want {
				t.Errorf("IsClosedError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}

func TestIsTransientError(t *testing.T) {
	wrap := func(errno unix.Errno) error {
		return &net.OpError{Op: "write", Net: "udp", Err: os.NewSyscallError("sendto", errno)}
	}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection refused", wrap(unix.ECONNREFUSED), true},
		{"host unreachable", wrap(unix.EHOSTUNREACH), true},
		{"network unreachable", wrap(unix.ENETUNREACH), true},
		{"no buffer space", wrap(unix.ENOBUFS), true},
		{"bad file descriptor", wrap(unix.EBADF), false},
		{"closed", net.ErrClosed, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsTransientError(test.err); got != test.want {
				t.Errorf("IsTransientError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}
