// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/courier/chat"
	"github.com/bureau-foundation/courier/lib/config"
	"github.com/bureau-foundation/courier/lib/process"
	"github.com/bureau-foundation/courier/lib/version"
	"github.com/bureau-foundation/courier/messaging"
	"github.com/bureau-foundation/courier/transport"
)

const (
	defaultListen = "127.0.0.1:7401"

	// logoutTimeout bounds the goodbye after a command finishes.
	logoutTimeout = 5 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		process.Fatal(err)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		configPath  string
		server      string
		listen      string
		verbose     bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("courier", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to courier.yaml (default: $COURIER_CONFIG, else built-in defaults)")
	flagSet.StringVar(&server, "server", "", "chat server address (overrides chat.server_address)")
	flagSet.StringVar(&listen, "listen", defaultListen, "this client's UDP address, which is also its name")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.SetInterspersed(false)
	flagSet.Usage = func() { printUsage(flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Fprintf(stdout, "courier %s\n", version.Info())
		return nil
	}
	if flagSet.NArg() == 0 {
		printUsage(flagSet)
		return fmt.Errorf("no command given")
	}

	command, commandArgs, err := parseCommand(flagSet.Args())
	if err != nil {
		return err
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if server != "" {
		cfg.Chat.ServerAddress = server
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Command output owns stdout; logs stay quiet unless asked for.
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := process.NewLogger(os.Stderr, level, "courier")

	retryTimeout, err := cfg.RetryTimeout()
	if err != nil {
		return err
	}
	compression, err := cfg.Compression()
	if err != nil {
		return err
	}

	client, err := chat.NewClient(chat.ClientConfig{
		Address:       transport.Address(listen),
		ServerAddress: transport.Address(cfg.Chat.ServerAddress),
		Transport:     &transport.UDPTransport{Logger: logger},
		Codec: &messaging.CBORCodec{
			Compression:          compression,
			CompressionThreshold: cfg.Messaging.CompressionThreshold,
		},
		RetryTimeout: retryTimeout,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer client.Stop()

	session := newSession(client, stdout, isTerminal(stdout))
	return session.execute(ctx, command, commandArgs)
}

// isTerminal reports whether w is a terminal, in which case listen
// prints a banner that would only clutter piped output.
func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

func printUsage(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `courier: command-line chat client.

Usage:
  courier [flags] <command> [arguments]

Commands:
`)
	for _, command := range commands {
		fmt.Fprintf(os.Stderr, "  %-22s %s\n", command.usage, command.summary)
	}
	fmt.Fprintf(os.Stderr, "\nFlags:\n")
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
