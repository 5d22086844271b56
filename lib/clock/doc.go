// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the time source used by the reliable messaging
// layer.
//
// The reliable channel waits a fixed retry timeout between
// retransmissions, and the in-memory test network can delay datagram
// delivery. Both take a [Clock] instead of calling the time package
// directly, so tests can drive retransmission deterministically:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	channel, _ := messaging.Open(messaging.ChannelConfig{Clock: c, ...})
//	go channel.Send(ctx, "server", payload, messaging.KindData)
//	c.WaitForTimers(1)              // the first attempt is in flight
//	c.Advance(20 * time.Millisecond) // fire the retry timer
//
// Production code uses [Real].
//
// # Fake clock synchronization
//
// Every Sleep, After, NewTimer, and AfterFunc call on a [FakeClock]
// registers a pending waiter. [FakeClock.WaitForTimers] blocks until a
// given number of waiters are registered, which removes the race between
// a goroutine arming its timer and the test advancing time.
package clock
