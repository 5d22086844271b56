// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/courier/lib/codec"
	"github.com/bureau-foundation/courier/transport"
)

// Codec converts envelopes to and from datagrams. Decode(Encode(e))
// must reproduce e exactly for every kind and payload, including an
// empty payload. Implementations must be safe for concurrent use.
type Codec interface {
	Encode(envelope Envelope) ([]byte, error)
	Decode(data []byte) (Envelope, error)
}

// DefaultCompressionThreshold is the payload size at which CBORCodec
// starts compressing when Compression is set. Below this, LZ4 and zstd
// framing overhead usually outweighs the savings.
const DefaultCompressionThreshold = 512

// CBORCodec frames envelopes as CBOR maps with integer keys. The zero
// value sends payloads uncompressed.
type CBORCodec struct {
	// Compression is applied to payloads of at least
	// CompressionThreshold bytes. Payloads that do not shrink are sent
	// raw. The frame records what was applied, so peers configured
	// differently still interoperate.
	Compression codec.Compression

	// CompressionThreshold defaults to DefaultCompressionThreshold.
	CompressionThreshold int
}

var _ Codec = CBORCodec{}

// wireFrame is the on-the-wire form of an Envelope.
type wireFrame struct {
	ID          string            `cbor:"1,keyasint,omitempty"`
	Origin      string            `cbor:"2,keyasint"`
	Kind        Kind              `cbor:"3,keyasint"`
	Payload     []byte            `cbor:"4,keyasint,omitempty"`
	InReplyTo   string            `cbor:"5,keyasint,omitempty"`
	Compression codec.Compression `cbor:"6,keyasint,omitempty"`

	// Size is the uncompressed payload length. Only present when
	// Compression is set.
	Size int `cbor:"7,keyasint,omitempty"`

	// Digest is the BLAKE3-256 of the uncompressed payload.
	Digest []byte `cbor:"8,keyasint"`
}

// Encode implements Codec.
func (c CBORCodec) Encode(envelope Envelope) ([]byte, error) {
	if !envelope.Kind.valid() {
		return nil, fmt.Errorf("%w: cannot encode %s", ErrInvalidArgument, envelope.Kind)
	}

	digest := blake3.Sum256(envelope.Payload)
	frame := wireFrame{
		ID:        envelope.ID,
		Origin:    string(envelope.Origin),
		Kind:      envelope.Kind,
		Payload:   envelope.Payload,
		InReplyTo: envelope.InReplyTo,
		Digest:    digest[:],
	}

	threshold := c.CompressionThreshold
	if threshold <= 0 {
		threshold = DefaultCompressionThreshold
	}
	if c.Compression != codec.CompressionNone && len(envelope.Payload) >= threshold {
		compressed, err := codec.Compress(envelope.Payload, c.Compression)
		switch {
		case err == nil:
			frame.Payload = compressed
			frame.Compression = c.Compression
			frame.Size = len(envelope.Payload)
		case errors.Is(err, codec.ErrIncompressible):
		default:
			return nil, fmt.Errorf("messaging: compressing payload: %w", err)
		}
	}

	data, err := codec.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("messaging: encoding frame: %w", err)
	}
	return data, nil
}

// Decode implements Codec.
func (c CBORCodec) Decode(data []byte) (Envelope, error) {
	var frame wireFrame
	if err := codec.Unmarshal(data, &frame); err != nil {
		return Envelope{}, fmt.Errorf("messaging: decoding frame: %w", err)
	}
	if !frame.Kind.valid() {
		return Envelope{}, fmt.Errorf("%w: unknown kind %d", ErrCorruptFrame, uint8(frame.Kind))
	}
	if frame.Kind != KindAck && frame.ID == "" {
		return Envelope{}, fmt.Errorf("%w: %s frame without an ID", ErrCorruptFrame, frame.Kind)
	}

	payload := frame.Payload
	if frame.Compression != codec.CompressionNone {
		decompressed, err := codec.Decompress(frame.Payload, frame.Compression, frame.Size)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: %v", ErrCorruptFrame, err)
		}
		payload = decompressed
	}

	digest := blake3.Sum256(payload)
	if !bytes.Equal(digest[:], frame.Digest) {
		return Envelope{}, fmt.Errorf("%w: payload digest mismatch", ErrCorruptFrame)
	}

	// Data and replies always carry a payload, possibly empty; omitempty
	// drops the empty one from the frame.
	if payload == nil && frame.Kind != KindAck {
		payload = []byte{}
	}

	return Envelope{
		ID:        frame.ID,
		Origin:    transport.Address(frame.Origin),
		Kind:      frame.Kind,
		Payload:   payload,
		InReplyTo: frame.InReplyTo,
	}, nil
}
