// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/courier/lib/clock"
	"github.com/bureau-foundation/courier/messaging"
	"github.com/bureau-foundation/courier/transport"
)

// ClientConfig configures NewClient.
type ClientConfig struct {
	// Address is the client's own address, and so its identity in
	// every room. Required.
	Address transport.Address

	// ServerAddress is the chat server's address. Required.
	ServerAddress transport.Address

	// Transport carries the datagrams. Required.
	Transport transport.Transport

	Codec        messaging.Codec
	RetryTimeout time.Duration
	Clock        clock.Clock
	Logger       *slog.Logger
}

// Client is a chat client. Its operations block until the server
// answers; the server's broadcasts arrive through the callbacks given
// to Login.
type Client struct {
	inner  *messaging.Client
	logger *slog.Logger

	mu             sync.Mutex
	loggedIn       bool
	onMessage      func(ChatMessage)
	onAnnouncement func(RoomAnnouncement)
}

// NewClient binds the client's address. The client starts logged out.
func NewClient(config ClientConfig) (*Client, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Client{logger: logger.With("component", "chat_client")}

	inner, err := messaging.NewClient(messaging.ClientConfig{
		Address:       config.Address,
		ServerAddress: config.ServerAddress,
		Transport:     config.Transport,
		Handler:       c.handleData,
		Codec:         config.Codec,
		RetryTimeout:  config.RetryTimeout,
		Clock:         config.Clock,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	c.inner = inner
	return c, nil
}

// Address returns the client's bound address, which other clients see
// as its name.
func (c *Client) Address() transport.Address {
	return c.inner.Address()
}

// LoggedIn reports whether Login has succeeded without a later Logout.
func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

// Login connects to the server. onMessage receives every chat message
// sent to a room the client is in, including its own; onAnnouncement
// receives joins, leaves, and disconnects of other members. Both are
// called on arbitrary goroutines, possibly concurrently and possibly
// more than once for the same broadcast.
func (c *Client) Login(ctx context.Context, onMessage func(ChatMessage), onAnnouncement func(RoomAnnouncement)) error {
	if onMessage == nil || onAnnouncement == nil {
		return fmt.Errorf("%w: login callbacks are required", ErrInvalidArgument)
	}

	c.mu.Lock()
	if c.loggedIn {
		c.mu.Unlock()
		return ErrAlreadyLoggedIn
	}
	c.onMessage = onMessage
	c.onAnnouncement = onAnnouncement
	c.mu.Unlock()

	if err := c.operation(ctx, ConnectRequest{}); err != nil {
		return err
	}

	c.mu.Lock()
	c.loggedIn = true
	c.mu.Unlock()
	return nil
}

// Logout disconnects from the server. Room memberships survive and
// take effect again on the next Login.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.requireLogin(); err != nil {
		return err
	}
	if err := c.operation(ctx, DisconnectRequest{}); err != nil {
		return err
	}
	c.mu.Lock()
	c.loggedIn = false
	c.mu.Unlock()
	return nil
}

// JoinRoom joins room, creating it if nobody is in it.
func (c *Client) JoinRoom(ctx context.Context, room string) error {
	if err := c.requireRoom(room); err != nil {
		return err
	}
	return c.operation(ctx, JoinRoomRequest{Room: room})
}

// LeaveRoom leaves room.
func (c *Client) LeaveRoom(ctx context.Context, room string) error {
	if err := c.requireRoom(room); err != nil {
		return err
	}
	return c.operation(ctx, LeaveRoomRequest{Room: room})
}

// SendMessage sends text to every online member of room.
func (c *Client) SendMessage(ctx context.Context, room, text string) error {
	if err := c.requireRoom(room); err != nil {
		return err
	}
	return c.operation(ctx, SendMessageRequest{Message: ChatMessage{
		From: string(c.Address()),
		Room: room,
		Text: text,
	}})
}

// JoinedRooms lists the rooms the client is in, sorted.
func (c *Client) JoinedRooms(ctx context.Context) ([]string, error) {
	if err := c.requireLogin(); err != nil {
		return nil, err
	}
	response, err := request[GetJoinedRoomsResponse](ctx, c, GetJoinedRoomsRequest{})
	if err != nil {
		return nil, err
	}
	return response.Rooms, nil
}

// AllRooms lists every room with at least one online member, sorted.
func (c *Client) AllRooms(ctx context.Context) ([]string, error) {
	if err := c.requireLogin(); err != nil {
		return nil, err
	}
	response, err := request[GetAllRoomsResponse](ctx, c, GetAllRoomsRequest{})
	if err != nil {
		return nil, err
	}
	return response.Rooms, nil
}

// ClientsInRoom lists the online members of room, sorted. A room with
// no online members is reported as ErrNoSuchRoom.
func (c *Client) ClientsInRoom(ctx context.Context, room string) ([]string, error) {
	if err := c.requireRoom(room); err != nil {
		return nil, err
	}
	response, err := request[GetClientsInRoomResponse](ctx, c, GetClientsInRoomRequest{Room: room})
	if err != nil {
		return nil, err
	}
	if len(response.Clients) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchRoom, room)
	}
	return response.Clients, nil
}

// Stop releases the client's address. It does not log out; the server
// keeps the client online until it stops.
func (c *Client) Stop() error {
	return c.inner.Stop()
}

func (c *Client) requireLogin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loggedIn {
		return ErrNotLoggedIn
	}
	return nil
}

func (c *Client) requireRoom(room string) error {
	if room == "" {
		return fmt.Errorf("%w: room name is empty", ErrInvalidArgument)
	}
	return c.requireLogin()
}

// operation sends a request answered by an OperationResponse and maps
// a failure reason to its error.
func (c *Client) operation(ctx context.Context, exchange Exchange) error {
	response, err := request[OperationResponse](ctx, c, exchange)
	if err != nil {
		return err
	}
	if response.Success {
		return nil
	}
	switch response.Reason {
	case ReasonAlreadyInRoom:
		return ErrAlreadyInRoom
	case ReasonNotInRoom:
		return ErrNotInRoom
	case ReasonNotLoggedIn:
		return ErrNotLoggedIn
	case ReasonInvalidRoom:
		return ErrInvalidArgument
	default:
		return fmt.Errorf("chat: %s failed: %q", exchange.Kind(), response.Reason)
	}
}

// request sends exchange and decodes the reply as T.
func request[T Exchange](ctx context.Context, c *Client, exchange Exchange) (T, error) {
	var zero T
	data, err := Encode(exchange)
	if err != nil {
		return zero, err
	}
	reply, err := c.inner.SendAndAwaitReply(ctx, data)
	if err != nil {
		return zero, err
	}
	decoded, err := Decode(reply)
	if err != nil {
		return zero, err
	}
	response, ok := decoded.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s answered with %s", ErrUnexpectedResponse, exchange.Kind(), decoded.Kind())
	}
	return response, nil
}

func (c *Client) handleData(payload []byte) {
	exchange, err := Decode(payload)
	if err != nil {
		c.logger.Warn("dropping undecodable broadcast", "error", err)
		return
	}

	c.mu.Lock()
	onMessage, onAnnouncement := c.onMessage, c.onAnnouncement
	c.mu.Unlock()

	switch broadcast := exchange.(type) {
	case SendMessageRequest:
		if onMessage != nil {
			onMessage(broadcast.Message)
		}
	case AnnouncementRequest:
		if onAnnouncement != nil {
			onAnnouncement(broadcast.Announcement)
		}
	default:
		c.logger.Warn("ignoring unexpected exchange from server", "kind", exchange.Kind())
	}
}
