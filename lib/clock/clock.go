// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock abstracts the time operations used by courier components.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d
	// has elapsed. If d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// NewTimer returns a one-shot timer that delivers on C after d.
	// Callers that may abandon the wait (the retry loop does, whenever
	// an acknowledgment wins the race) should Stop the timer.
	NewTimer(d time.Duration) *Timer

	// AfterFunc calls f after d. The returned Timer has a nil C.
	AfterFunc(d time.Duration, f func()) *Timer

	// Sleep blocks for at least d.
	Sleep(d time.Duration)
}

// Timer is a scheduled event created by NewTimer or AfterFunc.
type Timer struct {
	// C delivers the fire time. Nil for AfterFunc timers.
	C <-chan time.Time

	stopFunc func() bool
}

// Stop prevents the timer from firing. It reports whether the call
// stopped the timer; false means it had already fired or been stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }
