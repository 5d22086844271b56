// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/courier/lib/netutil"
)

// Compile-time interface checks.
var (
	_ Transport = (*UDPTransport)(nil)
	_ Handle    = (*udpHandle)(nil)
)

// UDPTransport binds one UDP socket per handle.
type UDPTransport struct {
	// Logger receives read-loop errors. Defaults to a discard logger.
	Logger *slog.Logger
}

// Open binds a UDP socket at address ("host:port"; port 0 picks a free
// port) and starts its read loop.
func (u *UDPTransport) Open(address Address, receive ReceiveFunc) (Handle, error) {
	if receive == nil {
		return nil, fmt.Errorf("transport: nil receive function for %s", address)
	}

	conn, err := net.ListenPacket("udp", string(address))
	if err != nil {
		if errors.Is(err, unix.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %s", ErrAddressInUse, address)
		}
		return nil, fmt.Errorf("transport: binding %s: %w", address, err)
	}

	logger := u.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	handle := &udpHandle{
		conn:     conn,
		address:  Address(conn.LocalAddr().String()),
		receive:  receive,
		logger:   logger,
		loopDone: make(chan struct{}),
	}
	go handle.readLoop()
	return handle, nil
}

type udpHandle struct {
	conn    net.PacketConn
	address Address
	receive ReceiveFunc
	logger  *slog.Logger

	// resolved caches destination lookups; peers are few and stable.
	resolved sync.Map // Address → *net.UDPAddr

	closeOnce sync.Once
	closeErr  error
	loopDone  chan struct{}
}

func (h *udpHandle) Address() Address { return h.address }

func (h *udpHandle) Send(to Address, data []byte) error {
	if len(data) > MaxDatagramSize {
		return fmt.Errorf("%w: %d bytes", ErrDatagramTooLarge, len(data))
	}
	destination, err := h.resolve(to)
	if err != nil {
		return err
	}
	if _, err := h.conn.WriteTo(data, destination); err != nil {
		if netutil.IsClosedError(err) {
			return ErrClosed
		}
		if netutil.IsTransientError(err) {
			return fmt.Errorf("%w: %s: %v", ErrUnreachable, to, err)
		}
		return fmt.Errorf("transport: sending to %s: %w", to, err)
	}
	return nil
}

func (h *udpHandle) resolve(to Address) (*net.UDPAddr, error) {
	if cached, ok := h.resolved.Load(to); ok {
		return cached.(*net.UDPAddr), nil
	}
	destination, err := net.ResolveUDPAddr("udp", string(to))
	if err != nil {
		return nil, fmt.Errorf("%w: resolving %s: %v", ErrUnreachable, to, err)
	}
	h.resolved.Store(to, destination)
	return destination, nil
}

// Close closes the socket and waits for the read loop to exit, so no
// receive call is in flight once Close returns.
func (h *udpHandle) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.conn.Close()
		<-h.loopDone
	})
	return h.closeErr
}

func (h *udpHandle) readLoop() {
	defer close(h.loopDone)

	buffer := make([]byte, MaxDatagramSize+1)
	for {
		n, from, err := h.conn.ReadFrom(buffer)
		if err != nil {
			if netutil.IsClosedError(err) {
				return
			}
			if netutil.IsTransientError(err) {
				h.logger.Debug("udp read reported a delivery failure", "address", h.address, "error", err)
			} else {
				h.logger.Warn("udp read failed", "address", h.address, "error", err)
			}
			continue
		}
		if n > MaxDatagramSize {
			h.logger.Debug("oversized datagram discarded", "address", h.address, "from", from.String())
			continue
		}
		h.receive(Address(from.String()), append([]byte(nil), buffer[:n]...))
	}
}
