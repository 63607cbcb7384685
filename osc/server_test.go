package osc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/maxatome/go-testdeep/td"
)

func startServer(t *testing.T, cfg Config) (*Server, <-chan *Message, context.CancelFunc, <-chan error) {
	t.Helper()
	received := make(chan *Message, 16)
	srv, err := NewServer(cfg, DestinationFunc(func(msg *Message) { received <- msg }))
	if err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		ln.Close()
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln, pc) }()

	select {
	case <-srv.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server not ready")
	}
	return srv, received, cancel, done
}

func waitMessage(t *testing.T, ch <-chan *Message) *Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
		return nil
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ReplyPort = 0
	return cfg
}

func TestServer_UDP(t *testing.T) {
	srv, received, cancel, done := startServer(t, testConfig())
	defer cancel()

	client, err := NewClient(srv.UDPAddr().String())
	td.Require(t).CmpNoError(err)
	defer client.Close()

	sent := NewMessage("/cue/1/start", "go now", int32(1), 0.5)
	td.CmpNoError(t, client.Send(sent))

	msg := waitMessage(t, received)
	td.CmpTrue(t, msg.Equals(sent), "got %s", msg)
	td.CmpNotNil(t, msg.ReplyTo)

	// The reply goes to the port the datagram came from.
	td.CmpNoError(t, msg.ReplyTo.Reply(NewMessage("/ack", 1)))
	buf := make([]byte, 1024)
	client.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := client.conn.Read(buf)
	td.Require(t).CmpNoError(err)
	reply, err := ParseMessage(buf[:n])
	td.CmpNoError(t, err)
	td.CmpTrue(t, reply.Equals(NewMessage("/ack", 1)))

	cancel()
	td.Cmp(t, <-done, context.Canceled)
}

func TestServer_TCP(t *testing.T) {
	srv, received, cancel, done := startServer(t, testConfig())
	defer cancel()

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	tc, err := DialTCP(ctx, srv.TCPAddr().String())
	td.Require(t).CmpNoError(err)

	sent := []*Message{
		NewMessage("/one", "a"),
		NewMessage("/two", []byte{slipEnd, slipEsc}),
		NewMessage("!ping"),
	}
	for _, msg := range sent {
		td.CmpNoError(t, tc.Send(ctx, msg))
	}
	var first *Message
	for i, want := range sent {
		msg := waitMessage(t, received)
		td.CmpTrue(t, msg.Equals(want), "got %s, want %s", msg, want)
		if i == 0 {
			first = msg
		}
	}

	count, err := srv.ConnectionCount(ctx)
	td.CmpNoError(t, err)
	td.Cmp(t, count, 1)

	// Replies travel back over the same connection.
	replies := make(chan *Message, 1)
	listenCtx, stopListen := context.WithCancel(ctx)
	listened := make(chan error, 1)
	go func() {
		listened <- tc.Listen(listenCtx, DestinationFunc(func(msg *Message) { replies <- msg }))
	}()
	td.CmpNoError(t, first.ReplyTo.Reply(NewMessage("/ack", "one")))
	reply := waitMessage(t, replies)
	td.CmpTrue(t, reply.Equals(NewMessage("/ack", "one")))
	stopListen()
	td.Cmp(t, <-listened, context.Canceled)

	td.CmpNoError(t, tc.Close())
	td.CmpTrue(t, waitConnections(ctx, srv, 0))

	cancel()
	td.Cmp(t, <-done, context.Canceled)
}

func TestServer_ManyConnections(t *testing.T) {
	srv, received, cancel, done := startServer(t, testConfig())
	defer cancel()

	ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()

	var clients []*TCPClient
	for i := 0; i < 3; i++ {
		tc, err := DialTCP(ctx, srv.TCPAddr().String())
		td.Require(t).CmpNoError(err)
		clients = append(clients, tc)
		td.CmpNoError(t, tc.Send(ctx, NewMessage("/client", i)))
	}
	seen := map[int32]bool{}
	for range clients {
		arg, _ := waitMessage(t, received).Argument(0)
		i, _ := arg.AsInt32()
		seen[i] = true
	}
	td.Cmp(t, seen, map[int32]bool{0: true, 1: true, 2: true})
	td.CmpTrue(t, waitConnections(ctx, srv, 3))

	clients[1].Close()
	td.CmpTrue(t, waitConnections(ctx, srv, 2))

	// Closing the server closes the remaining connections.
	cancel()
	td.Cmp(t, <-done, context.Canceled)
	for _, i := range []int{0, 2} {
		err := clients[i].Listen(ctx, DestinationFunc(func(*Message) {}))
		td.CmpNoError(t, err)
		clients[i].Close()
	}
}

func TestServer_ServeTwice(t *testing.T) {
	srv, _, cancel, done := startServer(t, testConfig())
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	td.Require(t).CmpNoError(err)
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	td.Require(t).CmpNoError(err)

	td.Cmp(t, srv.Serve(context.Background(), ln, pc), ErrServerStarted)
	_, err = ln.Accept()
	td.CmpError(t, err)

	cancel()
	td.Cmp(t, <-done, context.Canceled)
}

func TestTCPClient_NotConnected(t *testing.T) {
	var tc TCPClient
	td.Cmp(t, tc.Reply(NewMessage("/a")), ErrNotConnected)
	td.Cmp(t, tc.Listen(context.Background(), DestinationFunc(func(*Message) {})), ErrNotConnected)
	td.CmpNoError(t, tc.Close())
}

func TestNewServer_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TCPAddr = ""
	_, err := NewServer(cfg, NewDispatcher())
	td.CmpError(t, err)
}

// waitConnections polls until srv has n stream connections.
func waitConnections(ctx context.Context, srv *Server, n int) bool {
	for {
		count, err := srv.ConnectionCount(ctx)
		if err != nil {
			return false
		}
		if count == n {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}
