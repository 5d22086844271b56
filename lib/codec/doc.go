// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides courier's shared CBOR configuration and the
// payload compression used on the wire.
//
// Every datagram courier puts on a transport is a CBOR item: envelope
// frames in package messaging and exchange frames in package chat. This
// package holds the one encoder/decoder configuration so both sides of
// a link always agree. Encoding uses Core Deterministic Encoding (RFC
// 8949 §4.2), so the same frame always produces the same bytes; the
// integrity digest in the envelope codec depends on that.
//
//	data, err := codec.Marshal(frame)
//	err = codec.Unmarshal(data, &frame)
//
// # Compression
//
// [Compress] and [Decompress] apply block compression to a payload.
// The [Compression] tag travels inside the frame, and the receiver is
// told the uncompressed size so that a truncated or tampered block is
// detected instead of silently producing a short payload. Compression
// returns [ErrIncompressible] when the result would not be smaller;
// callers then send the payload as-is.
//
// # Struct tags
//
// Wire types use `cbor` tags with integer keys (`cbor:"1,keyasint"`)
// to keep datagrams small. Types that also appear in CLI output use
// `json` tags, which fxamacker/cbor honours as a fallback.
package codec
