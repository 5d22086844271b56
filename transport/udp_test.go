// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/courier/lib/testutil"
)

func openUDP(t *testing.T, transport *UDPTransport, address Address, receive ReceiveFunc) Handle {
	t.Helper()
	handle, err := transport.Open(address, receive)
	if err != nil {
		t.Fatalf("Open(%s): %v", address, err)
	}
	t.Cleanup(func() { handle.Close() })
	return handle
}

func TestUDPRoundTrip(t *testing.T) {
	udp := &UDPTransport{}
	receive, received := collector()
	server := openUDP(t, udp, "127.0.0.1:0", receive)
	client := openUDP(t, udp, "127.0.0.1:0", func(Address, []byte) {})

	if !strings.HasPrefix(string(server.Address()), "127.0.0.1:") || strings.HasSuffix(string(server.Address()), ":0") {
		t.Fatalf("Address() = %q, want the bound port", server.Address())
	}

	if err := client.Send(server.Address(), []byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := testutil.RequireReceive(t, received, 5*time.Second, "waiting for udp datagram")
	if got.data != "ping" {
		t.Errorf("received %q, want ping", got.data)
	}
	if got.from != client.Address() {
		t.Errorf("from = %q, want %q", got.from, client.Address())
	}
}

func TestUDPAddressInUseAndReuse(t *testing.T) {
	udp := &UDPTransport{}
	first, err := udp.Open("127.0.0.1:0", func(Address, []byte) {})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	address := first.Address()

	if _, err := udp.Open(address, func(Address, []byte) {}); !errors.Is(err, ErrAddressInUse) {
		t.Fatalf("second Open error = %v, want ErrAddressInUse", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	reopened, err := udp.Open(address, func(Address, []byte) {})
	if err != nil {
		t.Fatalf("Open after Close: %v", err)
	}
	reopened.Close()
}

func TestUDPSendErrors(t *testing.T) {
	udp := &UDPTransport{}
	handle, err := udp.Open("127.0.0.1:0", func(Address, []byte) {})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := handle.Send("127.0.0.1:9", make([]byte, MaxDatagramSize+1)); !errors.Is(err, ErrDatagramTooLarge) {
		t.Errorf("oversized Send error = %v, want ErrDatagramTooLarge", err)
	}
	if err := handle.Send("not an address", []byte("x")); !errors.Is(err, ErrUnreachable) {
		t.Errorf("unresolvable Send error = %v, want ErrUnreachable", err)
	}

	handle.Close()
	if err := handle.Send("127.0.0.1:9", []byte("x")); !errors.Is(err, ErrClosed) {
		t.Errorf("Send after Close error = %v, want ErrClosed", err)
	}
}
