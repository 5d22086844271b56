// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging turns an unreliable datagram [transport.Transport]
// into acknowledged, at-least-once delivery with a synchronous
// request/reply layer on top.
//
// [Channel] is the core. Every outbound [Envelope] gets a fresh random
// ID and is retransmitted, byte-for-byte, every RetryTimeout until the
// peer sends back a [KindAck] naming that ID. There are no sequence
// numbers and no deduplication: a DATA envelope may be handed to the
// application more than once, and handlers must tolerate that. Acks
// and replies are matched to their waiters by ID, so any number of
// goroutines may send on one Channel at the same time.
//
// [Client] and [Server] are the two adapters applications use. A
// Client talks to exactly one server address and runs its handler on
// a new goroutine per inbound message. A Server funnels every inbound
// request through one unbounded FIFO drained by a single goroutine,
// so its handler sees requests one at a time and can mutate
// application state without locks.
//
// Envelopes are framed by a [Codec]; [CBORCodec] is the default and
// optionally compresses large payloads and checks a BLAKE3 digest on
// every frame.
package messaging
