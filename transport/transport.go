// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "errors"

// Address identifies an endpoint on a transport. For the memory network
// it is any non-empty name; for UDP it is a "host:port" string.
type Address string

// ReceiveFunc is called once per inbound datagram. data is owned by the
// callee.
type ReceiveFunc func(from Address, data []byte)

// Transport opens handles bound to addresses.
type Transport interface {
	// Open binds address and starts delivering inbound datagrams to
	// receive. Returns ErrAddressInUse if another open handle holds
	// the address.
	Open(address Address, receive ReceiveFunc) (Handle, error)
}

// Handle is an open endpoint.
type Handle interface {
	// Address returns the address this handle is bound to. Peers send
	// to this address to reach the handle.
	Address() Address

	// Send transmits one datagram to the given address. A nil error
	// does not imply delivery.
	Send(to Address, data []byte) error

	// Close releases the address. After Close returns, the receive
	// function is not called again and Send returns ErrClosed. Close
	// is idempotent.
	Close() error
}

var (
	// ErrAddressInUse is returned by Open when the address is bound
	// by another open handle.
	ErrAddressInUse = errors.New("transport: address in use")

	// ErrUnreachable is returned by Send when the destination is
	// known not to exist. It is transient: the destination may bind
	// later.
	ErrUnreachable = errors.New("transport: destination unreachable")

	// ErrClosed is returned by Send on a closed handle.
	ErrClosed = errors.New("transport: handle closed")

	// ErrDatagramTooLarge is returned by Send when data exceeds
	// MaxDatagramSize.
	ErrDatagramTooLarge = errors.New("transport: datagram too large")

	// ErrInjectedFailure is returned by MemoryNetwork handles when a
	// Filter rejects a datagram with Fail.
	ErrInjectedFailure = errors.New("transport: injected send failure")
)

// MaxDatagramSize is the largest datagram any transport accepts: the
// maximum UDP payload over IPv4.
const MaxDatagramSize = 65507
