// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil classifies socket errors for the datagram transport.
//
// A UDP socket reports two very different kinds of failure through the
// same read and write calls: the socket itself is gone ([IsClosedError]),
// or one datagram could not be delivered and the socket is fine
// ([IsTransientError]). The transport stops its read loop on the first
// and keeps going on the second.
//
// This package has no courier-internal dependencies.
package netutil
