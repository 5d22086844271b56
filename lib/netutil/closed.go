// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"net"

	"golang.org/x/sys/unix"
)

// IsClosedError reports whether err comes from using a socket after it
// was closed.
func IsClosedError(err error) bool {
	return err != nil && errors.Is(err, net.ErrClosed)
}

// IsTransientError reports whether err describes one undeliverable
// datagram rather than a broken socket. ECONNREFUSED and the
// unreachable errors are ICMP replies to an earlier send that the
// kernel reports on whatever call comes next. ENOBUFS is a full send
// queue.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case unix.ECONNREFUSED, unix.EHOSTUNREACH, unix.ENETUNREACH, unix.EHOSTDOWN, unix.ENOBUFS:
		return true
	}
	return false
}
