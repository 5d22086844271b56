// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/courier/lib/clock"
	"github.com/bureau-foundation/courier/transport"
)

// ClientConfig configures NewClient.
type ClientConfig struct {
	// Address is the client's own address. Required.
	Address transport.Address

	// ServerAddress is the only peer the client talks to. Required.
	ServerAddress transport.Address

	// Transport carries the datagrams. Required.
	Transport transport.Transport

	// Handler receives the payload of every DATA envelope the client
	// receives, on its own goroutine. Handlers run concurrently with
	// each other and may see the same message twice. Nil discards.
	Handler func(payload []byte)

	Codec        Codec
	RetryTimeout time.Duration
	Clock        clock.Clock
	Logger       *slog.Logger
}

// Client binds one local address to one server.
type Client struct {
	channel *Channel
	server  transport.Address
	stopped atomic.Bool
}

// NewClient opens the client's channel.
func NewClient(config ClientConfig) (*Client, error) {
	if config.ServerAddress == "" {
		return nil, fmt.Errorf("%w: server address is required", ErrInvalidArgument)
	}

	var onData func(transport.Address, Envelope)
	if handler := config.Handler; handler != nil {
		onData = func(_ transport.Address, envelope Envelope) {
			handler(envelope.Payload)
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	channel, err := Open(ChannelConfig{
		Address:      config.Address,
		Transport:    config.Transport,
		Codec:        config.Codec,
		RetryTimeout: config.RetryTimeout,
		Clock:        config.Clock,
		Logger:       logger.With("component", "client"),
		OnData:       onData,
		DispatchData: DispatchConcurrent,
	})
	if err != nil {
		return nil, err
	}
	return &Client{channel: channel, server: config.ServerAddress}, nil
}

// Address returns the client's bound address.
func (c *Client) Address() transport.Address {
	return c.channel.Address()
}

// ServerAddress returns the address the client sends to.
func (c *Client) ServerAddress() transport.Address {
	return c.server
}

// Send delivers payload to the server as DATA and returns once the
// server has acknowledged it.
func (c *Client) Send(ctx context.Context, payload []byte) error {
	if c.stopped.Load() {
		return ErrStopped
	}
	return c.translate(c.channel.Send(ctx, c.server, payload, KindData))
}

// SendAndAwaitReply delivers payload to the server and returns the
// payload of the server's reply.
func (c *Client) SendAndAwaitReply(ctx context.Context, payload []byte) ([]byte, error) {
	if c.stopped.Load() {
		return nil, ErrStopped
	}
	reply, err := c.channel.SendAndAwaitReply(ctx, c.server, payload)
	return reply, c.translate(err)
}

// SendReply delivers payload to the server as a REPLY to the last
// message the server sent this client.
func (c *Client) SendReply(ctx context.Context, payload []byte) error {
	if c.stopped.Load() {
		return ErrStopped
	}
	return c.translate(c.channel.Reply(ctx, c.server, payload))
}

// Stop closes the channel and releases the address. Blocked sends
// return ErrStopped. Idempotent.
func (c *Client) Stop() error {
	if c.stopped.Swap(true) {
		return nil
	}
	return c.channel.Close()
}

// Stats returns the underlying channel's counters.
func (c *Client) Stats() ChannelStats {
	return c.channel.Stats()
}

// translate reports a channel closed by Stop as ErrStopped.
func (c *Client) translate(err error) error {
	if errors.Is(err, ErrChannelClosed) && c.stopped.Load() {
		return ErrStopped
	}
	return err
}
