// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/courier/lib/clock"
)

// Compile-time interface checks.
var (
	_ Transport = (*MemoryNetwork)(nil)
	_ Handle    = (*memoryHandle)(nil)
)

// Verdict is a Filter's decision about one datagram.
type Verdict int

const (
	// Deliver lets the datagram through (subject to LossRate and
	// DuplicateRate).
	Deliver Verdict = iota

	// Drop discards the datagram silently; Send returns nil.
	Drop

	// Fail discards the datagram and makes Send return
	// ErrInjectedFailure.
	Fail
)

// Filter inspects every datagram before it enters the network. It is
// called on the sending goroutine and may be called concurrently.
type Filter func(from, to Address, data []byte) Verdict

// MemoryOptions configures a MemoryNetwork. The zero value is a
// lossless network with no latency.
type MemoryOptions struct {
	// LossRate is the probability in [0, 1] that a datagram is
	// silently dropped.
	LossRate float64

	// DuplicateRate is the probability in [0, 1] that a delivered
	// datagram is delivered twice.
	DuplicateRate float64

	// Seed seeds the loss and duplication decisions so lossy tests
	// are reproducible.
	Seed uint64

	// Latency delays every delivery. Zero delivers as soon as the
	// delivery goroutine runs.
	Latency time.Duration

	// Clock times Latency. Defaults to clock.Real().
	Clock clock.Clock

	// Filter, if set, is consulted before loss and duplication.
	Filter Filter

	// Logger receives per-datagram debug messages. Defaults to a
	// discard logger.
	Logger *slog.Logger
}

// MemoryStats counts datagrams seen by a MemoryNetwork.
type MemoryStats struct {
	Sent       uint64
	Delivered  uint64
	Dropped    uint64
	Failed     uint64
	Duplicated uint64
}

// MemoryNetwork is an in-process datagram network. Every datagram is
// delivered on its own goroutine, so delivery order is unspecified.
type MemoryNetwork struct {
	options MemoryOptions
	clock   clock.Clock
	logger  *slog.Logger

	mu        sync.Mutex
	endpoints map[Address]*memoryHandle
	random    *rand.Rand
	filter    Filter

	sent, delivered, dropped, failed, duplicated atomic.Uint64
}

// NewMemoryNetwork creates an empty network.
func NewMemoryNetwork(options MemoryOptions) *MemoryNetwork {
	networkClock := options.Clock
	if networkClock == nil {
		networkClock = clock.Real()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &MemoryNetwork{
		options:   options,
		clock:     networkClock,
		logger:    logger,
		endpoints: make(map[Address]*memoryHandle),
		random:    rand.New(rand.NewPCG(options.Seed, options.Seed^0x9e3779b97f4a7c15)),
		filter:    options.Filter,
	}
}

// Open binds address on the network.
func (n *MemoryNetwork) Open(address Address, receive ReceiveFunc) (Handle, error) {
	if address == "" {
		return nil, fmt.Errorf("transport: empty address")
	}
	if receive == nil {
		return nil, fmt.Errorf("transport: nil receive function for %s", address)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, taken := n.endpoints[address]; taken {
		return nil, fmt.Errorf("%w: %s", ErrAddressInUse, address)
	}
	handle := &memoryHandle{network: n, address: address, receive: receive}
	n.endpoints[address] = handle
	return handle, nil
}

// SetFilter replaces the network's filter. Nil removes it.
func (n *MemoryNetwork) SetFilter(filter Filter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.filter = filter
}

// Stats returns a snapshot of the network's counters.
func (n *MemoryNetwork) Stats() MemoryStats {
	return MemoryStats{
		Sent:       n.sent.Load(),
		Delivered:  n.delivered.Load(),
		Dropped:    n.dropped.Load(),
		Failed:     n.failed.Load(),
		Duplicated: n.duplicated.Load(),
	}
}

// route decides the fate of one datagram and schedules its delivery.
func (n *MemoryNetwork) route(from, to Address, data []byte) error {
	n.sent.Add(1)

	n.mu.Lock()
	filter := n.filter
	destination := n.endpoints[to]
	n.mu.Unlock()

	if filter != nil {
		switch filter(from, to, data) {
		case Drop:
			n.dropped.Add(1)
			n.logger.Debug("datagram dropped by filter", "from", from, "to", to)
			return nil
		case Fail:
			n.failed.Add(1)
			return ErrInjectedFailure
		}
	}

	if destination == nil {
		n.failed.Add(1)
		return fmt.Errorf("%w: %s", ErrUnreachable, to)
	}

	lost, duplicate := n.roll()
	if lost {
		n.dropped.Add(1)
		n.logger.Debug("datagram lost", "from", from, "to", to)
		return nil
	}

	copies := 1
	if duplicate {
		copies = 2
		n.duplicated.Add(1)
	}
	for range copies {
		payload := append([]byte(nil), data...)
		if n.options.Latency > 0 {
			n.clock.AfterFunc(n.options.Latency, func() {
				go destination.deliver(from, payload)
			})
		} else {
			go destination.deliver(from, payload)
		}
	}
	return nil
}

// roll draws the loss and duplication decisions for one datagram.
func (n *MemoryNetwork) roll() (lost, duplicate bool) {
	if n.options.LossRate <= 0 && n.options.DuplicateRate <= 0 {
		return false, false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	lost = n.random.Float64() < n.options.LossRate
	duplicate = n.random.Float64() < n.options.DuplicateRate
	return lost, duplicate
}

// release unbinds handle's address if it still owns it.
func (n *MemoryNetwork) release(handle *memoryHandle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.endpoints[handle.address] == handle {
		delete(n.endpoints, handle.address)
	}
}

type memoryHandle struct {
	network *MemoryNetwork
	address Address
	receive ReceiveFunc

	closed atomic.Bool

	// receiving is held for reading while receive runs and for
	// writing by Close, so Close waits out in-flight callbacks.
	receiving sync.RWMutex
}

func (h *memoryHandle) Address() Address { return h.address }

func (h *memoryHandle) Send(to Address, data []byte) error {
	if h.closed.Load() {
		return ErrClosed
	}
	if len(data) > MaxDatagramSize {
		return fmt.Errorf("%w: %d bytes", ErrDatagramTooLarge, len(data))
	}
	return h.network.route(h.address, to, data)
}

func (h *memoryHandle) Close() error {
	if h.closed.Swap(true) {
		return nil
	}
	h.receiving.Lock()
	h.receiving.Unlock() //nolint:staticcheck // barrier: waits for in-flight callbacks
	h.network.release(h)
	return nil
}

func (h *memoryHandle) deliver(from Address, data []byte) {
	h.receiving.RLock()
	defer h.receiving.RUnlock()
	if h.closed.Load() {
		h.network.dropped.Add(1)
		return
	}
	h.network.delivered.Add(1)
	h.receive(from, data)
}
