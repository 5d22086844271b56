// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for courier packages.
//
// [RequireReceive], [RequireClosed], and [RequireEventually] hold the
// only real wall-clock timeouts in the test suite. Each is a hang guard:
// a test that passes never reaches the timeout, so the values can be
// generous. Timing inside the code under test is driven by
// lib/clock.FakeClock where determinism matters.
//
// [UniqueID] generates distinct names for endpoints and rooms so tests
// sharing an in-memory network never collide on an address.
//
// All helpers call t.Fatalf on failure.
//
// This package has no courier-internal dependencies.
package testutil
