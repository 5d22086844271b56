// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/courier/lib/testutil"
	"github.com/bureau-foundation/courier/transport"
)

func startServer(t *testing.T, config ServerConfig) *Server {
	t.Helper()
	server, err := NewServer(config)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		if server.Running() {
			server.Stop()
		}
	})
	return server
}

func newClient(t *testing.T, config ClientConfig) *Client {
	t.Helper()
	client, err := NewClient(config)
	if err != nil {
		t.Fatalf("NewClient(%s): %v", config.Address, err)
	}
	t.Cleanup(func() { client.Stop() })
	return client
}

func TestServerRepliesBoo(t *testing.T) {
	network := transport.NewMemoryNetwork(transport.MemoryOptions{})
	var server *Server
	server = startServer(t, ServerConfig{Address: "server", Transport: network,
		Handler: func(from transport.Address, payload []byte) {
			if err := server.SendReply(context.Background(), from, []byte("boo")); err != nil && !errors.Is(err, ErrNotRunning) {
				t.Errorf("SendReply: %v", err)
			}
		}})
	client := newClient(t, ClientConfig{Address: "client", ServerAddress: "server", Transport: network})

	reply, err := client.SendAndAwaitReply(testContext(t), []byte("hi"))
	if err != nil {
		t.Fatalf("SendAndAwaitReply: %v", err)
	}
	if string(reply) != "boo" {
		t.Errorf("reply = %q, want boo", reply)
	}
}

func TestServerSlowAsynchronousReply(t *testing.T) {
	network := transport.NewMemoryNetwork(transport.MemoryOptions{})
	var server *Server
	server = startServer(t, ServerConfig{Address: "server", Transport: network,
		Handler: func(from transport.Address, payload []byte) {
			go func() {
				time.Sleep(100 * time.Millisecond)
				server.SendReply(context.Background(), from, []byte("boo"))
			}()
		}})
	client := newClient(t, ClientConfig{Address: "client", ServerAddress: "server", Transport: network})

	reply, err := client.SendAndAwaitReply(testContext(t), []byte("hi"))
	if err != nil {
		t.Fatalf("SendAndAwaitReply: %v", err)
	}
	if string(reply) != "boo" {
		t.Errorf("reply = %q, want boo", reply)
	}
}

func TestServerHandlerNeverInterleaves(t *testing.T) {
	const (
		clients           = 5
		messagesPerClient = 20
	)

	network := transport.NewMemoryNetwork(transport.MemoryOptions{})
	var active, maxActive, calls atomic.Int32
	startServer(t, ServerConfig{Address: "server", Transport: network,
		Handler: func(transport.Address, []byte) {
			now := active.Add(1)
			for {
				seen := maxActive.Load()
				if now <= seen || maxActive.CompareAndSwap(seen, now) {
					break
				}
			}
			time.Sleep(100 * time.Microsecond)
			active.Add(-1)
			calls.Add(1)
		}})

	ctx := testContext(t)
	var wg sync.WaitGroup
	for i := range clients {
		client := newClient(t, ClientConfig{
			Address:       transport.Address(fmt.Sprintf("client-%d", i)),
			ServerAddress: "server",
			Transport:     network,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range messagesPerClient {
				if err := client.Send(ctx, fmt.Appendf(nil, "%d", j)); err != nil {
					t.Errorf("client %d send %d: %v", i, j, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	testutil.RequireEventually(t, testTimeout, func() bool { return calls.Load() >= clients*messagesPerClient },
		"handler ran fewer times than messages were sent")
	if got := maxActive.Load(); got != 1 {
		t.Errorf("at most %d handler invocations ran at once, want 1", got)
	}
}

func TestServerTightLoop(t *testing.T) {
	const messages = 200

	network := transport.NewMemoryNetwork(transport.MemoryOptions{})
	var calls atomic.Int32
	startServer(t, ServerConfig{Address: "server", Transport: network,
		Handler: func(transport.Address, []byte) { calls.Add(1) }})
	client := newClient(t, ClientConfig{Address: "client", ServerAddress: "server", Transport: network})

	ctx := testContext(t)
	for i := range messages {
		if err := client.Send(ctx, fmt.Appendf(nil, "%d", i)); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}
	testutil.RequireEventually(t, testTimeout, func() bool { return calls.Load() >= messages },
		"handler saw %d of %d messages", calls.Load(), messages)
}

func TestServerHandlesRequestsInArrivalOrder(t *testing.T) {
	network := transport.NewMemoryNetwork(transport.MemoryOptions{})
	handled := make(chan string, 16)
	startServer(t, ServerConfig{Address: "server", Transport: network,
		Handler: func(_ transport.Address, payload []byte) {
			handled <- string(payload)
		}})
	client := newClient(t, ClientConfig{Address: "client", ServerAddress: "server", Transport: network})

	// The ack goes out before the request is queued, so a returned Send
	// does not mean the request is queued yet. Waiting for the handler
	// before the next Send makes arrival order well defined.
	ctx := testContext(t)
	var order []string
	for i := range 10 {
		if err := client.Send(ctx, fmt.Appendf(nil, "%d", i)); err != nil {
			t.Fatalf("Send: %v", err)
		}
		order = append(order, testutil.RequireReceive(t, handled, testTimeout, "request %d", i))
	}
	for i, item := range order {
		if item != fmt.Sprint(i) {
			t.Fatalf("handling order = %v, want 0..9", order)
		}
	}
}

func TestServerLifecycle(t *testing.T) {
	network := transport.NewMemoryNetwork(transport.MemoryOptions{})
	server, err := NewServer(ServerConfig{Address: "server", Transport: network,
		Handler: func(transport.Address, []byte) {}})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ctx := testContext(t)

	if server.Running() {
		t.Error("new server reports running")
	}
	if err := server.Stop(); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Stop on stopped server: %v, want ErrNotRunning", err)
	}
	if err := server.Send(ctx, "client", []byte("x")); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Send on stopped server: %v, want ErrNotRunning", err)
	}
	if err := server.SendReply(ctx, "client", []byte("x")); !errors.Is(err, ErrNotRunning) {
		t.Errorf("SendReply on stopped server: %v, want ErrNotRunning", err)
	}

	if err := server.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !server.Running() {
		t.Error("started server reports stopped")
	}
	if err := server.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start: %v, want ErrAlreadyRunning", err)
	}
	if err := server.Send(ctx, "client", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Send nil payload: %v, want ErrInvalidArgument", err)
	}

	if err := server.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestServerAddressReusableAfterStop(t *testing.T) {
	network := transport.NewMemoryNetwork(transport.MemoryOptions{})
	server := startServer(t, ServerConfig{Address: "server", Transport: network,
		Handler: func(transport.Address, []byte) {}})

	if _, err := Open(ChannelConfig{Address: "server", Transport: network}); !errors.Is(err, transport.ErrAddressInUse) {
		t.Fatalf("Open while server runs: %v, want ErrAddressInUse", err)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	channel := openChannel(t, ChannelConfig{Address: "server", Transport: network})
	channel.Close()
}

func TestServerStopReleasesBlockedHandler(t *testing.T) {
	network := transport.NewMemoryNetwork(transport.MemoryOptions{})
	handlerResult := make(chan error, 1)
	var server *Server
	server = startServer(t, ServerConfig{Address: "server", Transport: network,
		Handler: func(transport.Address, []byte) {
			// Nobody listens at "absent", so this blocks until Stop.
			handlerResult <- server.Send(context.Background(), "absent", []byte("x"))
		}})
	client := newClient(t, ClientConfig{Address: "client", ServerAddress: "server", Transport: network})

	if err := client.Send(testContext(t), []byte("go")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	testutil.RequireEventually(t, testTimeout, func() bool { return server.Stats().Attempts >= 2 },
		"handler never started sending")

	if err := server.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := testutil.RequireReceive(t, handlerResult, testTimeout, "waiting for handler"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("blocked Send error = %v, want ErrNotRunning", err)
	}
}

func TestServerRecoversHandlerPanic(t *testing.T) {
	network := transport.NewMemoryNetwork(transport.MemoryOptions{})
	handled := make(chan string, 16)
	startServer(t, ServerConfig{Address: "server", Transport: network,
		Handler: func(_ transport.Address, payload []byte) {
			if string(payload) == "explode" {
				panic("boom")
			}
			handled <- string(payload)
		}})
	client := newClient(t, ClientConfig{Address: "client", ServerAddress: "server", Transport: network})

	ctx := testContext(t)
	if err := client.Send(ctx, []byte("explode")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := client.Send(ctx, []byte("after")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := testutil.RequireReceive(t, handled, testTimeout, "waiting for the request after the panic"); got != "after" {
		t.Errorf("handled %q, want after", got)
	}
}

func TestClientReceivesServerData(t *testing.T) {
	network := transport.NewMemoryNetwork(transport.MemoryOptions{})
	server := startServer(t, ServerConfig{Address: "server", Transport: network,
		Handler: func(transport.Address, []byte) {}})

	received := make(chan string, 4)
	client := newClient(t, ClientConfig{Address: "client", ServerAddress: "server", Transport: network,
		Handler: func(payload []byte) { received <- string(payload) }})

	if err := server.Send(testContext(t), client.Address(), []byte("push")); err != nil {
		t.Fatalf("server Send: %v", err)
	}
	if got := testutil.RequireReceive(t, received, testTimeout, "waiting for pushed data"); got != "push" {
		t.Errorf("client received %q, want push", got)
	}
	if client.ServerAddress() != "server" {
		t.Errorf("ServerAddress = %q, want server", client.ServerAddress())
	}
}

func TestClientSendReply(t *testing.T) {
	network := transport.NewMemoryNetwork(transport.MemoryOptions{})
	server := startServer(t, ServerConfig{Address: "server", Transport: network,
		Handler: func(transport.Address, []byte) {}})

	var client *Client
	replied := make(chan error, 1)
	clientReady := make(chan struct{})
	client = newClient(t, ClientConfig{Address: "client", ServerAddress: "server", Transport: network,
		Handler: func([]byte) {
			<-clientReady
			err := client.SendReply(context.Background(), []byte("ok"))
			select {
			case replied <- err:
			default:
			}
		}})
	close(clientReady)

	if err := server.Send(testContext(t), "client", []byte("ping")); err != nil {
		t.Fatalf("server Send: %v", err)
	}
	if err := testutil.RequireReceive(t, replied, testTimeout, "waiting for client reply"); err != nil {
		t.Errorf("SendReply: %v", err)
	}
}

func TestClientStop(t *testing.T) {
	network := transport.NewMemoryNetwork(transport.MemoryOptions{})
	client, err := NewClient(ClientConfig{Address: "client", ServerAddress: "server", Transport: network})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	blocked := make(chan error, 1)
	go func() { blocked <- client.Send(context.Background(), []byte("x")) }()
	testutil.RequireEventually(t, testTimeout, func() bool { return client.Stats().Attempts >= 1 },
		"send never started")

	if err := client.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := testutil.RequireReceive(t, blocked, testTimeout, "waiting for blocked Send"); !errors.Is(err, ErrStopped) {
		t.Errorf("blocked Send error = %v, want ErrStopped", err)
	}

	ctx := testContext(t)
	if err := client.Send(ctx, []byte("x")); !errors.Is(err, ErrStopped) {
		t.Errorf("Send after Stop: %v, want ErrStopped", err)
	}
	if _, err := client.SendAndAwaitReply(ctx, []byte("x")); !errors.Is(err, ErrStopped) {
		t.Errorf("SendAndAwaitReply after Stop: %v, want ErrStopped", err)
	}
	if err := client.SendReply(ctx, []byte("x")); !errors.Is(err, ErrStopped) {
		t.Errorf("SendReply after Stop: %v, want ErrStopped", err)
	}
	if err := client.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}

	// The address is free again.
	reopened := newClient(t, ClientConfig{Address: "client", ServerAddress: "server", Transport: network})
	reopened.Stop()
}

func TestClientValidation(t *testing.T) {
	network := transport.NewMemoryNetwork(transport.MemoryOptions{})
	if _, err := NewClient(ClientConfig{Address: "client", Transport: network}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewClient without server: %v, want ErrInvalidArgument", err)
	}
	client := newClient(t, ClientConfig{Address: "client", ServerAddress: "server", Transport: network})
	if err := client.Send(testContext(t), nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Send nil: %v, want ErrInvalidArgument", err)
	}
	if _, err := NewServer(ServerConfig{Address: "server", Transport: network}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewServer without handler: %v, want ErrInvalidArgument", err)
	}
}

func TestClientServerOverUDP(t *testing.T) {
	udp := &transport.UDPTransport{}
	var server *Server
	server = startServer(t, ServerConfig{Address: "127.0.0.1:0", Transport: udp,
		Handler: func(from transport.Address, payload []byte) {
			server.SendReply(context.Background(), from, append([]byte("echo:"), payload...))
		}})
	client := newClient(t, ClientConfig{Address: "127.0.0.1:0", ServerAddress: server.Address(), Transport: udp})

	reply, err := client.SendAndAwaitReply(testContext(t), []byte("udp"))
	if err != nil {
		t.Fatalf("SendAndAwaitReply: %v", err)
	}
	if string(reply) != "echo:udp" {
		t.Errorf("reply = %q, want echo:udp", reply)
	}
}
