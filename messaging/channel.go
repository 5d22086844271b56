// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/courier/lib/clock"
	"github.com/bureau-foundation/courier/lib/codec"
	"github.com/bureau-foundation/courier/transport"
)

// DefaultRetryTimeout is how long a send waits for an ack before
// retransmitting.
const DefaultRetryTimeout = 20 * time.Millisecond

// DispatchMode selects how a Channel hands inbound DATA envelopes to
// its OnData hook.
type DispatchMode int

const (
	// DispatchConcurrent runs OnData on a new goroutine per envelope.
	// The hook may block, and may send on the same channel.
	DispatchConcurrent DispatchMode = iota

	// DispatchInline runs OnData on the transport's receive goroutine.
	// The hook must return promptly and must not send on the channel;
	// Server uses it to enqueue work.
	DispatchInline
)

// ChannelConfig configures Open.
type ChannelConfig struct {
	// Address to bind. Required. For UDP, port 0 picks a free port;
	// Channel.Address reports the bound one.
	Address transport.Address

	// Transport carries the datagrams. Required.
	Transport transport.Transport

	// Codec frames envelopes. Defaults to CBORCodec{}.
	Codec Codec

	// RetryTimeout defaults to DefaultRetryTimeout.
	RetryTimeout time.Duration

	// Clock times retransmissions. Defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to a discard logger.
	Logger *slog.Logger

	// OnData receives every inbound DATA envelope, including
	// retransmitted duplicates. from is the transport-level source
	// address, which is where acks and replies go. Nil discards data
	// (it is still acked).
	OnData func(from transport.Address, envelope Envelope)

	// DispatchData selects how OnData is invoked.
	DispatchData DispatchMode
}

// ChannelStats counts channel activity since Open.
type ChannelStats struct {
	// Attempts counts every datagram handed to the transport for a
	// DATA or REPLY send, including retransmissions.
	Attempts uint64

	// Retransmissions counts attempts after the first for each send.
	Retransmissions uint64

	// AcksReceived counts acks that completed a waiting send.
	AcksReceived uint64

	// StaleAcks counts acks for sends that had already completed.
	StaleAcks uint64

	// DataReceived counts inbound DATA envelopes, duplicates included.
	DataReceived uint64

	// RepliesDelivered counts replies handed to a waiting caller.
	RepliesDelivered uint64

	// DroppedFrames counts inbound datagrams discarded as undecodable
	// or corrupt, and replies nobody was waiting for.
	DroppedFrames uint64
}

// Channel is a reliable endpoint bound to one address. All methods are
// safe for concurrent use.
type Channel struct {
	handle       transport.Handle
	address      transport.Address
	codec        Codec
	retryTimeout time.Duration
	clock        clock.Clock
	logger       *slog.Logger
	onData       func(transport.Address, Envelope)
	dispatchMode DispatchMode

	// ready is closed once handle and address are set. The transport
	// may deliver before Open has returned.
	ready chan struct{}

	// done is closed by Close and releases every blocked caller.
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	mu sync.Mutex

	// closed is set under mu before done is closed, so dispatch
	// goroutines are never added after Close starts waiting for them.
	closed bool

	// pendingAcks maps an outbound envelope ID to the channel closed
	// when its ack arrives.
	pendingAcks map[string]chan struct{}

	// pendingReplies maps a request ID to the channel its reply
	// payload is delivered on. replyOrder holds the same IDs oldest
	// first, for replies that do not name their request.
	pendingReplies map[string]chan []byte
	replyOrder     []string

	// lastData is the ID of the most recent DATA envelope received from
	// each peer. Reply uses it to correlate.
	lastData map[transport.Address]string

	dispatches sync.WaitGroup

	attempts, retransmissions, acksReceived, staleAcks atomic.Uint64
	dataReceived, repliesDelivered, droppedFrames     atomic.Uint64
}

// Open binds config.Address and starts receiving. It returns an error
// wrapping transport.ErrAddressInUse if the address is taken.
func Open(config ChannelConfig) (*Channel, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("%w: channel address is required", ErrInvalidArgument)
	}
	if config.Transport == nil {
		return nil, fmt.Errorf("%w: channel transport is required", ErrInvalidArgument)
	}

	channel := &Channel{
		codec:          config.Codec,
		retryTimeout:   config.RetryTimeout,
		clock:          config.Clock,
		logger:         config.Logger,
		onData:         config.OnData,
		dispatchMode:   config.DispatchData,
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
		pendingAcks:    make(map[string]chan struct{}),
		pendingReplies: make(map[string]chan []byte),
		lastData:       make(map[transport.Address]string),
	}
	if channel.codec == nil {
		channel.codec = CBORCodec{}
	}
	if channel.retryTimeout <= 0 {
		channel.retryTimeout = DefaultRetryTimeout
	}
	if channel.clock == nil {
		channel.clock = clock.Real()
	}
	if channel.logger == nil {
		channel.logger = slog.New(slog.DiscardHandler)
	}

	handle, err := config.Transport.Open(config.Address, channel.receive)
	if err != nil {
		return nil, fmt.Errorf("messaging: opening channel at %s: %w", config.Address, err)
	}
	channel.handle = handle
	channel.address = handle.Address()
	channel.logger = channel.logger.With("address", channel.address)
	close(channel.ready)

	channel.logger.Debug("channel opened")
	return channel, nil
}

// Address returns the bound address.
func (c *Channel) Address() transport.Address {
	return c.address
}

// Send transmits payload to to as kind (KindData or KindReply) and
// blocks until the peer acknowledges it. Lost datagrams and transport
// errors are retried indefinitely; Send returns early only when ctx is
// done or the channel is closed.
func (c *Channel) Send(ctx context.Context, to transport.Address, payload []byte, kind Kind) error {
	if err := validateSend(to, payload); err != nil {
		return err
	}
	if kind != KindData && kind != KindReply {
		return fmt.Errorf("%w: cannot send %s envelopes", ErrInvalidArgument, kind)
	}
	return c.deliver(ctx, to, Envelope{
		ID:      newEnvelopeID(),
		Origin:  c.address,
		Kind:    kind,
		Payload: payload,
	})
}

// Reply sends payload to to as a REPLY to the most recent DATA
// envelope received from to.
func (c *Channel) Reply(ctx context.Context, to transport.Address, payload []byte) error {
	c.mu.Lock()
	request := c.lastData[to]
	c.mu.Unlock()
	return c.ReplyTo(ctx, to, request, payload)
}

// ReplyTo sends payload to to as a REPLY to the DATA envelope with ID
// request. An empty request leaves the reply uncorrelated; the peer
// hands it to its longest-waiting SendAndAwaitReply.
func (c *Channel) ReplyTo(ctx context.Context, to transport.Address, request string, payload []byte) error {
	if err := validateSend(to, payload); err != nil {
		return err
	}
	return c.deliver(ctx, to, Envelope{
		ID:        newEnvelopeID(),
		Origin:    c.address,
		Kind:      KindReply,
		Payload:   payload,
		InReplyTo: request,
	})
}

// SendAndAwaitReply sends payload to to as DATA, waits for the ack,
// then waits for the REPLY that answers it and returns the reply's
// payload.
func (c *Channel) SendAndAwaitReply(ctx context.Context, to transport.Address, payload []byte) ([]byte, error) {
	if err := validateSend(to, payload); err != nil {
		return nil, err
	}

	envelope := Envelope{
		ID:      newEnvelopeID(),
		Origin:  c.address,
		Kind:    KindData,
		Payload: payload,
	}

	// Register before the first transmission: the reply can overtake
	// the ack.
	replies := make(chan []byte, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrChannelClosed
	}
	c.pendingReplies[envelope.ID] = replies
	c.replyOrder = append(c.replyOrder, envelope.ID)
	c.mu.Unlock()
	defer c.forgetReply(envelope.ID)

	if err := c.deliver(ctx, to, envelope); err != nil {
		return nil, err
	}

	select {
	case reply := <-replies:
		return reply, nil
	case <-c.done:
		return nil, ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats returns a snapshot of the channel's counters.
func (c *Channel) Stats() ChannelStats {
	return ChannelStats{
		Attempts:         c.attempts.Load(),
		Retransmissions:  c.retransmissions.Load(),
		AcksReceived:     c.acksReceived.Load(),
		StaleAcks:        c.staleAcks.Load(),
		DataReceived:     c.dataReceived.Load(),
		RepliesDelivered: c.repliesDelivered.Load(),
		DroppedFrames:    c.droppedFrames.Load(),
	}
}

// Close releases the address, fails every blocked call with
// ErrChannelClosed, and waits for running DispatchConcurrent handlers
// to return. It must not be called from inside OnData. Idempotent.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)

		// The handle waits out in-flight receive callbacks, so no new
		// dispatch can start after this returns.
		c.closeErr = c.handle.Close()
		c.dispatches.Wait()
		c.logger.Debug("channel closed")
	})
	return c.closeErr
}

func validateSend(to transport.Address, payload []byte) error {
	if to == "" {
		return fmt.Errorf("%w: empty destination", ErrInvalidArgument)
	}
	if payload == nil {
		return fmt.Errorf("%w: nil payload", ErrInvalidArgument)
	}
	return nil
}

// deliver transmits envelope until it is acked. Every attempt sends
// the same bytes; a failed or unacknowledged attempt is followed by
// another after one RetryTimeout, with no cap and no backoff.
func (c *Channel) deliver(ctx context.Context, to transport.Address, envelope Envelope) error {
	frame, err := c.codec.Encode(envelope)
	if err != nil {
		return fmt.Errorf("messaging: encoding %s envelope: %w", envelope.Kind, err)
	}
	if len(frame) > transport.MaxDatagramSize {
		return fmt.Errorf("messaging: %d-byte frame to %s: %w", len(frame), to, transport.ErrDatagramTooLarge)
	}

	acked := make(chan struct{})
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrChannelClosed
	}
	c.pendingAcks[envelope.ID] = acked
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pendingAcks, envelope.ID)
		c.mu.Unlock()
	}()

	for attempt := 0; ; attempt++ {
		c.attempts.Add(1)
		if attempt > 0 {
			c.retransmissions.Add(1)
		}
		if err := c.handle.Send(to, frame); err != nil {
			c.logger.Debug("send attempt failed",
				"peer", to,
				"envelope_id", envelope.ID,
				"attempt", attempt,
				"error", err,
			)
		}

		timer := c.clock.NewTimer(c.retryTimeout)
		select {
		case <-acked:
			timer.Stop()
			return nil
		case <-timer.C:
		case <-c.done:
			timer.Stop()
			// An ack that raced Close still counts.
			select {
			case <-acked:
				return nil
			default:
			}
			return ErrChannelClosed
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

func (c *Channel) forgetReply(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forgetReplyLocked(id)
}

func (c *Channel) forgetReplyLocked(id string) {
	delete(c.pendingReplies, id)
	if index := slices.Index(c.replyOrder, id); index >= 0 {
		c.replyOrder = slices.Delete(c.replyOrder, index, index+1)
	}
}

// receive is the transport callback. It may run concurrently with
// itself and with every other method.
func (c *Channel) receive(from transport.Address, data []byte) {
	<-c.ready

	envelope, err := c.codec.Decode(data)
	if err != nil {
		c.droppedFrames.Add(1)
		if c.logger.Enabled(context.Background(), slog.LevelDebug) {
			diagnostic, diagnoseErr := codec.Diagnose(data)
			if diagnoseErr != nil {
				diagnostic = fmt.Sprintf("%d bytes, not CBOR", len(data))
			}
			c.logger.Debug("dropping undecodable frame", "peer", from, "error", err, "frame", diagnostic)
		}
		return
	}

	if envelope.Kind == KindAck {
		c.handleAck(envelope)
		return
	}

	c.sendAck(from, envelope)

	switch envelope.Kind {
	case KindReply:
		c.handleReply(from, envelope)
	case KindData:
		c.handleData(from, envelope)
	}
}

func (c *Channel) handleAck(envelope Envelope) {
	c.mu.Lock()
	acked, waiting := c.pendingAcks[envelope.InReplyTo]
	if waiting {
		delete(c.pendingAcks, envelope.InReplyTo)
	}
	c.mu.Unlock()

	if !waiting {
		c.staleAcks.Add(1)
		return
	}
	c.acksReceived.Add(1)
	close(acked)
}

// sendAck acknowledges envelope once. Lost acks are recovered by the
// sender's retransmission, which is acked again on arrival.
func (c *Channel) sendAck(to transport.Address, envelope Envelope) {
	frame, err := c.codec.Encode(Envelope{
		Origin:    c.address,
		Kind:      KindAck,
		InReplyTo: envelope.ID,
	})
	if err != nil {
		c.logger.Error("encoding ack", "envelope_id", envelope.ID, "error", err)
		return
	}
	if err := c.handle.Send(to, frame); err != nil && !errors.Is(err, transport.ErrClosed) {
		c.logger.Debug("ack send failed", "peer", to, "envelope_id", envelope.ID, "error", err)
	}
}

func (c *Channel) handleReply(from transport.Address, envelope Envelope) {
	c.mu.Lock()
	request := envelope.InReplyTo
	replies, waiting := c.pendingReplies[request]
	if !waiting && request == "" && len(c.replyOrder) > 0 {
		request = c.replyOrder[0]
		replies, waiting = c.pendingReplies[request]
	}
	if waiting {
		c.forgetReplyLocked(request)
	}
	c.mu.Unlock()

	if !waiting {
		// A retransmitted reply whose first copy was already consumed,
		// or a reply to a request sent without waiting.
		c.droppedFrames.Add(1)
		c.logger.Debug("dropping unexpected reply",
			"peer", from,
			"envelope_id", envelope.ID,
			"in_reply_to", envelope.InReplyTo,
		)
		return
	}
	c.repliesDelivered.Add(1)
	replies <- envelope.Payload
}

func (c *Channel) handleData(from transport.Address, envelope Envelope) {
	c.dataReceived.Add(1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.lastData[from] = envelope.ID
	if c.onData == nil {
		c.mu.Unlock()
		return
	}
	if c.dispatchMode == DispatchInline {
		c.mu.Unlock()
		c.onData(from, envelope)
		return
	}
	c.dispatches.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.dispatches.Done()
		defer func() {
			if recovered := recover(); recovered != nil {
				c.logger.Error("data handler panicked",
					"peer", from,
					"envelope_id", envelope.ID,
					"panic", recovered,
				)
			}
		}()
		c.onData(from, envelope)
	}()
}
