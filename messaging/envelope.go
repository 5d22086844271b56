// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/bureau-foundation/courier/transport"
)

// Kind distinguishes the three envelope types on the wire. The
// numeric values are carried in frames; do not renumber.
type Kind uint8

const (
	// KindData is an application message. The receiver acks it and
	// hands the payload to its data handler.
	KindData Kind = 1

	// KindReply answers an earlier KindData envelope. The receiver
	// acks it and hands the payload to whichever SendAndAwaitReply
	// call is waiting for it.
	KindReply Kind = 2

	// KindAck acknowledges receipt of the envelope named by its
	// InReplyTo field. Acks are never acked and never retransmitted.
	KindAck Kind = 3
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindReply:
		return "reply"
	case KindAck:
		return "ack"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func (k Kind) valid() bool {
	return k == KindData || k == KindReply || k == KindAck
}

// Envelope is the unit exchanged between channels.
type Envelope struct {
	// ID is chosen by the sender once per logical send and reused on
	// every retransmission. Acks leave it empty.
	ID string

	// Origin is the address the sender's channel is bound to.
	Origin transport.Address

	Kind Kind

	// Payload is the application bytes. Empty is a legitimate payload
	// for data and replies; acks carry none.
	Payload []byte

	// InReplyTo names the envelope being acknowledged (on acks) or the
	// request being answered (on replies, when known).
	InReplyTo string
}

func newEnvelopeID() string {
	return uuid.NewString()
}
