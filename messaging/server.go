// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/courier/lib/clock"
	"github.com/bureau-foundation/courier/transport"
)

// ServerConfig configures NewServer.
type ServerConfig struct {
	// Address is where the server listens. Required.
	Address transport.Address

	// Transport carries the datagrams. Required.
	Transport transport.Transport

	// Handler is called for every inbound DATA envelope, one call at a
	// time, in arrival order. Required.
	Handler func(from transport.Address, payload []byte)

	Codec        Codec
	RetryTimeout time.Duration
	Clock        clock.Clock
	Logger       *slog.Logger
}

// Request is one inbound message waiting for the handler.
type Request struct {
	From    transport.Address
	ID      string
	Payload []byte
}

type serverState int

const (
	serverStopped serverState = iota
	serverRunning
)

func (s serverState) String() string {
	if s == serverRunning {
		return "running"
	}
	return "stopped"
}

// serverRun holds everything belonging to one Start/Stop cycle. The
// consumer goroutine receives it by argument and never reads Server
// fields.
type serverRun struct {
	channel *Channel
	work    *queue[Request]

	// consumerDone is closed when the consumer goroutine exits.
	consumerDone chan struct{}

	// current is the request the handler is processing, so a reply
	// sent from inside the handler names it exactly.
	currentMu sync.Mutex
	current   *Request
}

// Server serializes inbound requests onto a single handler goroutine.
// A stopped Server may be started again.
type Server struct {
	config ServerConfig
	logger *slog.Logger

	// lifecycle serializes Start and Stop so a restart never races the
	// previous run's shutdown for the address.
	lifecycle sync.Mutex

	mu    sync.Mutex
	state serverState
	run   *serverRun
}

// NewServer validates config. The server starts in the stopped state.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("%w: server address is required", ErrInvalidArgument)
	}
	if config.Transport == nil {
		return nil, fmt.Errorf("%w: server transport is required", ErrInvalidArgument)
	}
	if config.Handler == nil {
		return nil, fmt.Errorf("%w: server handler is required", ErrInvalidArgument)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{config: config, logger: logger.With("component", "server")}, nil
}

// Start binds the address and starts the consumer goroutine.
func (s *Server) Start() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state == serverRunning {
		return ErrAlreadyRunning
	}

	work := newQueue[Request]()
	channel, err := Open(ChannelConfig{
		Address:      s.config.Address,
		Transport:    s.config.Transport,
		Codec:        s.config.Codec,
		RetryTimeout: s.config.RetryTimeout,
		Clock:        s.config.Clock,
		Logger:       s.logger,
		OnData: func(from transport.Address, envelope Envelope) {
			work.Push(Request{From: from, ID: envelope.ID, Payload: envelope.Payload})
		},
		DispatchData: DispatchInline,
	})
	if err != nil {
		return err
	}

	run := &serverRun{
		channel:      channel,
		work:         work,
		consumerDone: make(chan struct{}),
	}

	// Publish the run before the consumer starts, so a handler that
	// replies straight away finds it.
	s.mu.Lock()
	s.state = serverRunning
	s.run = run
	s.mu.Unlock()

	go s.consume(run)

	s.logger.Info("server started", "address", channel.Address())
	return nil
}

// Stop halts intake, closes the channel (releasing the address and
// failing blocked sends), and waits for the consumer to finish the
// request it is handling. Requests still queued are discarded.
func (s *Server) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	run := s.run
	if s.state != serverRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.state = serverStopped
	s.run = nil
	s.mu.Unlock()

	discarded := run.work.Len()
	run.work.Close()
	err := run.channel.Close()
	<-run.consumerDone

	s.logger.Info("server stopped", "address", run.channel.Address(), "discarded", discarded)
	return err
}

// Running reports whether the server is started.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == serverRunning
}

// Address returns the bound address while running, and the configured
// address otherwise.
func (s *Server) Address() transport.Address {
	if run := s.currentRun(); run != nil {
		return run.channel.Address()
	}
	return s.config.Address
}

// Send delivers payload to to as DATA and returns once it is acked.
func (s *Server) Send(ctx context.Context, to transport.Address, payload []byte) error {
	run := s.currentRun()
	if run == nil {
		return ErrNotRunning
	}
	return translateStopped(run.channel.Send(ctx, to, payload, KindData))
}

// SendReply delivers payload to to as a REPLY. Called from inside the
// handler for a request from to, the reply names that request;
// otherwise it names the latest request received from to.
func (s *Server) SendReply(ctx context.Context, to transport.Address, payload []byte) error {
	run := s.currentRun()
	if run == nil {
		return ErrNotRunning
	}

	run.currentMu.Lock()
	current := run.current
	run.currentMu.Unlock()

	var err error
	if current != nil && current.From == to {
		err = run.channel.ReplyTo(ctx, to, current.ID, payload)
	} else {
		err = run.channel.Reply(ctx, to, payload)
	}
	return translateStopped(err)
}

// Stats returns the current run's channel counters, or zero when
// stopped.
func (s *Server) Stats() ChannelStats {
	if run := s.currentRun(); run != nil {
		return run.channel.Stats()
	}
	return ChannelStats{}
}

func (s *Server) currentRun() *serverRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

func (s *Server) consume(run *serverRun) {
	defer close(run.consumerDone)
	for {
		request, ok := run.work.Pop()
		if !ok {
			return
		}
		s.handle(run, request)
	}
}

func (s *Server) handle(run *serverRun, request Request) {
	run.currentMu.Lock()
	run.current = &request
	run.currentMu.Unlock()

	defer func() {
		run.currentMu.Lock()
		run.current = nil
		run.currentMu.Unlock()

		if recovered := recover(); recovered != nil {
			s.logger.Error("request handler panicked",
				"peer", request.From,
				"envelope_id", request.ID,
				"panic", recovered,
			)
		}
	}()

	s.config.Handler(request.From, request.Payload)
}

// translateStopped reports a channel closed by Stop as ErrNotRunning.
func translateStopped(err error) error {
	if errors.Is(err, ErrChannelClosed) {
		return ErrNotRunning
	}
	return err
}
