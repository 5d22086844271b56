// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/courier/chat"
	"github.com/bureau-foundation/courier/lib/config"
	"github.com/bureau-foundation/courier/lib/process"
	"github.com/bureau-foundation/courier/lib/version"
	"github.com/bureau-foundation/courier/messaging"
	"github.com/bureau-foundation/courier/transport"
)

// stopTimeout bounds saving memberships on shutdown.
const stopTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		listen      string
		statePath   string
		clean       bool
		verbose     bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("courier-server", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to courier.yaml (default: $COURIER_CONFIG, else built-in defaults)")
	flagSet.StringVar(&listen, "listen", "", "UDP address to serve on (overrides transport.listen)")
	flagSet.StringVar(&statePath, "state-path", "", "SQLite database for room memberships (overrides chat.state_path)")
	flagSet.BoolVar(&clean, "clean", false, "discard saved room memberships before starting")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("courier-server %s\n", version.Full())
		return nil
	}
	if flagSet.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flagSet.Arg(0))
	}

	cfg, err := config.Resolve(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if listen != "" {
		cfg.Transport.Listen = listen
	}
	if statePath != "" {
		cfg.Chat.StatePath = statePath
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger := process.NewLogger(os.Stderr, level, "courier-server")
	slog.SetDefault(logger)

	if err := cfg.EnsureStateDirectory(); err != nil {
		return err
	}

	retryTimeout, err := cfg.RetryTimeout()
	if err != nil {
		return err
	}
	compression, err := cfg.Compression()
	if err != nil {
		return err
	}

	server, err := chat.NewServer(chat.ServerConfig{
		Address:   transport.Address(cfg.Transport.Listen),
		Transport: &transport.UDPTransport{Logger: logger},
		StatePath: cfg.Chat.StatePath,
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if clean {
		if err := server.Clean(ctx); err != nil {
			return fmt.Errorf("cleaning saved memberships: %w", err)
		}
		logger.Info("discarded saved memberships", "path", cfg.Chat.StatePath)
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	logger.Info("chat server running",
		"address", server.Address(),
		"state_path", cfg.Chat.StatePath,
		"environment", cfg.Environment,
		"version", version.Info(),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	stopContext, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := server.Stop(stopContext); err != nil {
		return fmt.Errorf("stopping server: %w", err)
	}
	return nil
}
