// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport provides the unreliable datagram layer that courier's
// reliable messaging is built on.
//
// A [Transport] opens a [Handle] bound to an [Address]. While the handle
// is open no other handle on the same transport may bind that address
// ([ErrAddressInUse]); after Close the address is immediately reusable.
// Handle.Send is fire-and-forget: a nil error means the datagram was
// handed to the network, not that it arrived. Datagrams may be lost,
// duplicated, or reordered, and Send may fail transiently. Callers that
// need delivery guarantees use package messaging, which retries until
// the peer acknowledges.
//
// Inbound datagrams are passed to the [ReceiveFunc] given to Open. The
// function may be invoked concurrently from several goroutines and must
// not block for long; it is never invoked after Close returns.
//
// Two implementations are provided:
//
//   - [MemoryNetwork] connects handles inside one process. It delivers
//     every datagram on its own goroutine and can inject loss,
//     duplication, latency, and per-datagram verdicts through a
//     [Filter]. Tests use it to exercise retransmission.
//   - [UDPTransport] binds a UDP socket per handle. Addresses are
//     "host:port" strings; the handle's Address reports the bound
//     address, with the kernel-chosen port when ":0" was requested.
package transport
