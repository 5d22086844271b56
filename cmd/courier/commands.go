// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/bureau-foundation/courier/chat"
)

// command is one courier subcommand. Every command but listen runs
// between a Login and a Logout.
type command struct {
	name    string
	usage   string
	summary string

	// minArgs and maxArgs bound the positional arguments. maxArgs < 0
	// means unbounded.
	minArgs, maxArgs int

	run func(ctx context.Context, s *session, args []string) error
}

var commands = []command{
	{
		name: "rooms", usage: "rooms", summary: "list rooms with someone online",
		run: func(ctx context.Context, s *session, _ []string) error {
			rooms, err := s.client.AllRooms(ctx)
			if err != nil {
				return err
			}
			s.printLines(rooms)
			return nil
		},
	},
	{
		name: "joined", usage: "joined", summary: "list the rooms you are in",
		run: func(ctx context.Context, s *session, _ []string) error {
			rooms, err := s.client.JoinedRooms(ctx)
			if err != nil {
				return err
			}
			s.printLines(rooms)
			return nil
		},
	},
	{
		name: "who", usage: "who ROOM", summary: "list who is online in a room",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, s *session, args []string) error {
			clients, err := s.client.ClientsInRoom(ctx, args[0])
			if err != nil {
				return err
			}
			s.printLines(clients)
			return nil
		},
	},
	{
		name: "join", usage: "join ROOM", summary: "join a room",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, s *session, args []string) error {
			return s.client.JoinRoom(ctx, args[0])
		},
	},
	{
		name: "leave", usage: "leave ROOM", summary: "leave a room",
		minArgs: 1, maxArgs: 1,
		run: func(ctx context.Context, s *session, args []string) error {
			return s.client.LeaveRoom(ctx, args[0])
		},
	},
	{
		name: "say", usage: "say ROOM TEXT...", summary: "send a message to a room",
		minArgs: 2, maxArgs: -1,
		run: func(ctx context.Context, s *session, args []string) error {
			return s.client.SendMessage(ctx, args[0], strings.Join(args[1:], " "))
		},
	},
	{
		name: "listen", usage: "listen [ROOM...]", summary: "join the given rooms and print traffic until interrupted",
		maxArgs: -1,
		run: func(ctx context.Context, s *session, args []string) error {
			for _, room := range args {
				err := s.client.JoinRoom(ctx, room)
				if err != nil && !errors.Is(err, chat.ErrAlreadyInRoom) {
					return fmt.Errorf("joining %s: %w", room, err)
				}
			}
			if s.interactive {
				s.printf("listening as %s, interrupt to stop\n", s.client.Address())
			}
			<-ctx.Done()
			return nil
		},
	},
}

// parseCommand finds the named command and checks its argument count.
func parseCommand(args []string) (*command, []string, error) {
	name, rest := args[0], args[1:]
	for i := range commands {
		candidate := &commands[i]
		if candidate.name != name {
			continue
		}
		if len(rest) < candidate.minArgs || (candidate.maxArgs >= 0 && len(rest) > candidate.maxArgs) {
			return nil, nil, fmt.Errorf("usage: courier %s", candidate.usage)
		}
		return candidate, rest, nil
	}
	return nil, nil, fmt.Errorf("unknown command %q", name)
}

// session runs one command for a logged-in client and prints what the
// server pushes meanwhile.
type session struct {
	client      *chat.Client
	interactive bool

	// Callbacks arrive on arbitrary goroutines.
	outputMu sync.Mutex
	output   io.Writer
}

func newSession(client *chat.Client, output io.Writer, interactive bool) *session {
	return &session{client: client, output: output, interactive: interactive}
}

// execute logs in, runs command, and logs out. Logout runs with a
// fresh context so an interrupted listen still says goodbye.
func (s *session) execute(ctx context.Context, command *command, args []string) error {
	if err := s.client.Login(ctx, s.printMessage, s.printAnnouncement); err != nil {
		return fmt.Errorf("logging in to the server: %w", err)
	}
	runErr := command.run(ctx, s, args)

	logoutContext, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
	defer cancel()
	logoutErr := s.client.Logout(logoutContext)
	if runErr != nil {
		return runErr
	}
	if logoutErr != nil {
		return fmt.Errorf("logging out: %w", logoutErr)
	}
	return nil
}

func (s *session) printf(format string, args ...any) {
	s.outputMu.Lock()
	defer s.outputMu.Unlock()
	fmt.Fprintf(s.output, format, args...)
}

func (s *session) printLines(lines []string) {
	s.outputMu.Lock()
	defer s.outputMu.Unlock()
	for _, line := range lines {
		fmt.Fprintln(s.output, line)
	}
}

func (s *session) printMessage(message chat.ChatMessage) {
	s.printf("[%s] %s: %s\n", message.Room, message.From, message.Text)
}

func (s *session) printAnnouncement(announcement chat.RoomAnnouncement) {
	var verb string
	switch announcement.Kind {
	case chat.AnnounceJoin:
		verb = "joined"
	case chat.AnnounceLeave:
		verb = "left"
	case chat.AnnounceDisconnect:
		verb = "went offline in"
	default:
		verb = announcement.Kind.String()
	}
	s.printf("* %s %s %s\n", announcement.Client, verb, announcement.Room)
}
