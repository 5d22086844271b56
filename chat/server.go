// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/courier/lib/clock"
	"github.com/bureau-foundation/courier/messaging"
	"github.com/bureau-foundation/courier/transport"
)

// DefaultReplyTimeout bounds how long the server retries one reply.
const DefaultReplyTimeout = 5 * time.Second

// ServerConfig configures NewServer.
type ServerConfig struct {
	// Address is where the server listens. Required.
	Address transport.Address

	// Transport carries the datagrams. Required.
	Transport transport.Transport

	// StatePath is the SQLite database memberships are saved to on
	// Stop and loaded from on Start. Empty keeps memberships in memory
	// only, across restarts of the same Server value.
	StatePath string

	// ReplyTimeout bounds the retries of one reply. Replies are sent
	// from the request consumer, so a client that vanishes after its
	// request was acked holds up every other client until this
	// expires. Defaults to DefaultReplyTimeout.
	ReplyTimeout time.Duration

	Codec        messaging.Codec
	RetryTimeout time.Duration
	Clock        clock.Clock
	Logger       *slog.Logger
}

// Server is the chat server.
type Server struct {
	config ServerConfig
	logger *slog.Logger
	inner  *messaging.Server

	// lifecycle serializes Start, Stop, and Clean.
	lifecycle sync.Mutex

	// Owned by the request consumer while running, and by the
	// lifecycle methods otherwise.
	state *State
	store *Store

	// runContext is canceled by Stop to abandon broadcasts still
	// retrying toward unreachable clients.
	runContext context.Context
	cancelRun  context.CancelFunc
	broadcasts sync.WaitGroup
}

// NewServer validates config. The server starts stopped.
func NewServer(config ServerConfig) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.ReplyTimeout <= 0 {
		config.ReplyTimeout = DefaultReplyTimeout
	}
	s := &Server{
		config: config,
		logger: logger.With("component", "chat_server"),
		state:  NewState(),
	}

	inner, err := messaging.NewServer(messaging.ServerConfig{
		Address:      config.Address,
		Transport:    config.Transport,
		Handler:      s.handle,
		Codec:        config.Codec,
		RetryTimeout: config.RetryTimeout,
		Clock:        config.Clock,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}
	s.inner = inner
	return s, nil
}

// Address returns the server's address.
func (s *Server) Address() transport.Address {
	return s.inner.Address()
}

// Running reports whether the server is started.
func (s *Server) Running() bool {
	return s.inner.Running()
}

// Start loads saved memberships and starts serving. Every client starts
// logged out.
func (s *Server) Start(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.inner.Running() {
		return messaging.ErrAlreadyRunning
	}

	if s.config.StatePath != "" {
		store, err := OpenStore(s.config.StatePath, s.logger)
		if err != nil {
			return err
		}
		memberships, err := store.Load(ctx)
		if err != nil {
			store.Close()
			return err
		}
		s.store = store
		s.state = RestoreState(memberships)
		s.logger.Info("loaded memberships", "path", s.config.StatePath, "count", len(memberships))
	}

	s.runContext, s.cancelRun = context.WithCancel(context.Background())
	if err := s.inner.Start(); err != nil {
		s.cancelRun()
		if s.store != nil {
			s.store.Close()
			s.store = nil
		}
		return err
	}
	return nil
}

// Stop stops serving, logs every client out, and saves memberships.
func (s *Server) Stop(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	stats := s.inner.Stats()
	if err := s.inner.Stop(); err != nil {
		return err
	}
	s.cancelRun()
	s.broadcasts.Wait()
	s.logger.Info("chat server stopped",
		"attempts", stats.Attempts,
		"retransmissions", stats.Retransmissions,
		"requests", stats.DataReceived,
		"dropped_frames", stats.DroppedFrames,
	)

	s.state.DisconnectAll()
	if s.store == nil {
		return nil
	}

	store := s.store
	s.store = nil
	saveErr := store.Save(ctx, s.state.Memberships())
	closeErr := store.Close()
	return errors.Join(saveErr, closeErr)
}

// Clean forgets every membership, in memory and on disk. The server
// must be stopped.
func (s *Server) Clean(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.inner.Running() {
		return messaging.ErrAlreadyRunning
	}
	s.state = NewState()
	if s.config.StatePath == "" {
		return nil
	}

	store, err := OpenStore(s.config.StatePath, s.logger)
	if err != nil {
		return err
	}
	return errors.Join(store.Clean(ctx), store.Close())
}

// handle runs on the messaging.Server consumer goroutine, one request
// at a time.
func (s *Server) handle(from transport.Address, payload []byte) {
	exchange, err := Decode(payload)
	if err != nil {
		s.logger.Warn("dropping undecodable request", "peer", from, "error", err)
		return
	}
	client := string(from)
	s.logger.Debug("handling request", "peer", from, "kind", exchange.Kind())

	switch request := exchange.(type) {
	case ConnectRequest:
		if s.state.IsConnected(client) {
			s.reply(from, OperationResponse{Success: true})
			return
		}
		s.state.ConnectClient(client)
		s.reply(from, OperationResponse{Success: true})
		for _, room := range s.state.RoomsOf(client) {
			s.announce(client, room, AnnounceJoin)
		}

	case DisconnectRequest:
		rooms := s.state.RoomsOf(client)
		s.state.DisconnectClient(client)
		s.reply(from, OperationResponse{Success: true})
		for _, room := range rooms {
			s.announce(client, room, AnnounceDisconnect)
		}

	case SendMessageRequest:
		message := request.Message
		if reason, ok := s.checkMember(client, message.Room, true); !ok {
			s.reply(from, OperationResponse{Reason: reason})
			return
		}
		message.From = client
		s.broadcast(s.state.ClientsIn(message.Room), SendMessageRequest{Message: message})
		s.reply(from, OperationResponse{Success: true})

	case JoinRoomRequest:
		if reason, ok := s.checkMember(client, request.Room, false); !ok {
			s.reply(from, OperationResponse{Reason: reason})
			return
		}
		s.state.JoinRoom(client, request.Room)
		s.reply(from, OperationResponse{Success: true})
		s.announce(client, request.Room, AnnounceJoin)

	case LeaveRoomRequest:
		if reason, ok := s.checkMember(client, request.Room, true); !ok {
			s.reply(from, OperationResponse{Reason: reason})
			return
		}
		s.state.LeaveRoom(client, request.Room)
		s.reply(from, OperationResponse{Success: true})
		s.announce(client, request.Room, AnnounceLeave)

	case GetJoinedRoomsRequest:
		s.reply(from, GetJoinedRoomsResponse{Rooms: s.state.RoomsOf(client)})

	case GetAllRoomsRequest:
		s.reply(from, GetAllRoomsResponse{Rooms: s.state.ActiveRooms()})

	case GetClientsInRoomRequest:
		s.reply(from, GetClientsInRoomResponse{Clients: s.state.ClientsIn(request.Room)})

	case OperationResponse, GetJoinedRoomsResponse, GetAllRoomsResponse,
		GetClientsInRoomResponse, AnnouncementRequest:
		s.logger.Warn("ignoring client-bound exchange sent to server", "peer", from, "kind", exchange.Kind())
	}
}

// checkMember validates a room operation. wantMember says whether the
// client must already be in the room (leave, send) or must not be
// (join).
func (s *Server) checkMember(client, room string, wantMember bool) (FailureReason, bool) {
	switch {
	case !s.state.IsConnected(client):
		return ReasonNotLoggedIn, false
	case room == "":
		return ReasonInvalidRoom, false
	case wantMember && !s.state.IsInRoom(client, room):
		return ReasonNotInRoom, false
	case !wantMember && s.state.IsInRoom(client, room):
		return ReasonAlreadyInRoom, false
	}
	return "", true
}

// reply answers the request being handled. It blocks until the client
// acknowledges or ReplyTimeout passes, which keeps replies ordered with
// the handling without letting a vanished client stall the consumer.
func (s *Server) reply(to transport.Address, response Exchange) {
	data, err := Encode(response)
	if err != nil {
		s.logger.Error("encoding response", "kind", response.Kind(), "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(s.runContext, s.config.ReplyTimeout)
	defer cancel()
	if err := s.inner.SendReply(ctx, to, data); err != nil {
		s.logger.Warn("reply failed", "peer", to, "kind", response.Kind(), "error", err)
	}
}

// announce tells the other online members of room what client did.
func (s *Server) announce(client, room string, kind AnnouncementKind) {
	var recipients []string
	for _, member := range s.state.ClientsIn(room) {
		if member != client {
			recipients = append(recipients, member)
		}
	}
	s.broadcast(recipients, AnnouncementRequest{Announcement: RoomAnnouncement{
		Client: client,
		Room:   room,
		Kind:   kind,
	}})
}

// broadcast sends exchange to each recipient on its own goroutine, so
// one unreachable client cannot stall the request consumer.
func (s *Server) broadcast(recipients []string, exchange Exchange) {
	if len(recipients) == 0 {
		return
	}
	data, err := Encode(exchange)
	if err != nil {
		s.logger.Error("encoding broadcast", "kind", exchange.Kind(), "error", err)
		return
	}
	for _, recipient := range recipients {
		s.broadcasts.Add(1)
		go func() {
			defer s.broadcasts.Done()
			err := s.inner.Send(s.runContext, transport.Address(recipient), data)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, messaging.ErrNotRunning) {
				s.logger.Warn("broadcast failed",
					"peer", recipient,
					"kind", exchange.Kind(),
					"error", err,
				)
			}
		}()
	}
}
