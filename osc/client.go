package osc

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/Lobaro/slip"
	"github.com/pkg/errors"
)

// ErrNotConnected is returned by a TCPClient that has no connection.
var ErrNotConnected = errors.New("osc: not connected")

////
// Client
////

// Client sends OSC messages as UDP datagrams to one address.
type Client struct {
	conn *net.UDPConn
}

// NewClient creates a new OSC client sending to addr ("host:port").
func NewClient(addr string) (*Client, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "resolving address")
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Send sends msg as one datagram.
func (c *Client) Send(msg *Message) error {
	_, err := c.conn.Write(msg.Bytes())
	return err
}

// Reply implements Replier, so a Client can serve as a message's reply
// destination.
func (c *Client) Reply(msg *Message) error {
	return c.Send(msg)
}

// LocalAddr returns the address datagrams are sent from.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Close closes the client's socket.
func (c *Client) Close() error {
	return c.conn.Close()
}

////
// TCPClient
////

// TCPClient sends and receives SLIP framed OSC messages over TCP.
type TCPClient struct {
	addr   string
	logger Logger

	// ReconnectWait is the pause between two connection attempts.
	ReconnectWait time.Duration

	mu   sync.Mutex
	conn net.Conn
	w    *slip.Writer
}

// TCPClientOption configures a TCPClient.
type TCPClientOption func(*TCPClient)

// TCPClientLoggerOption sets the logger for the client.
func TCPClientLoggerOption(logger Logger) TCPClientOption {
	return func(tc *TCPClient) {
		tc.logger = logger
	}
}

// ReconnectWaitOption sets the pause between connection attempts.
func ReconnectWaitOption(d time.Duration) TCPClientOption {
	return func(tc *TCPClient) {
		tc.ReconnectWait = d
	}
}

// DialTCP connects to the server at addr.
func DialTCP(ctx context.Context, addr string, opts ...TCPClientOption) (*TCPClient, error) {
	tc := &TCPClient{
		addr:          addr,
		logger:        defaultLogger(),
		ReconnectWait: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(tc)
	}
	if err := tc.connect(ctx); err != nil {
		return nil, err
	}
	return tc, nil
}

func (tc *TCPClient) connect(ctx context.Context) error {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", tc.addr)
	if err != nil {
		return errors.Wrapf(err, "connecting to %s", tc.addr)
	}
	tc.logger.Info("connected", "remote_addr", c.RemoteAddr())

	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.conn != nil {
		tc.conn.Close()
	}
	tc.conn = c
	tc.w = slip.NewWriter(c)
	return nil
}

// Send writes msg as one SLIP packet. After a failed write the client
// reconnects once and tries again.
func (tc *TCPClient) Send(ctx context.Context, msg *Message) error {
	err := tc.write(msg)
	if err == nil {
		return nil
	}
	tc.logger.Warn("send failed, reconnecting", "remote_addr", tc.addr, "error", err)
	if err := tc.Reconnect(ctx); err != nil {
		return err
	}
	return tc.write(msg)
}

// Reply implements Replier.
func (tc *TCPClient) Reply(msg *Message) error {
	return tc.write(msg)
}

func (tc *TCPClient) write(msg *Message) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.w == nil {
		return ErrNotConnected
	}
	return tc.w.WritePacket(msg.Bytes())
}

// Reconnect dials the server again, waiting ReconnectWait between attempts,
// until it succeeds or ctx ends.
func (tc *TCPClient) Reconnect(ctx context.Context) error {
	tc.logger.Info("reconnecting", "remote_addr", tc.addr)
	for {
		err := tc.connect(ctx)
		if err == nil {
			return nil
		}
		tc.logger.Warn("error connecting", "error", err, "retry_in", tc.ReconnectWait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(tc.ReconnectWait):
		}
	}
}

// Listen reads SLIP packets from the connection and hands every decoded
// message to sink, with the client as its reply destination. It returns when
// the connection fails or ctx ends.
func (tc *TCPClient) Listen(ctx context.Context, sink Destination) error {
	tc.mu.Lock()
	conn := tc.conn
	tc.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	r := slip.NewReader(conn)
	for {
		packet, _, err := r.ReadPacket()
		if len(packet) > 0 {
			msg, derr := ParseMessage(packet)
			if derr != nil {
				tc.logger.Warn("dropping undecodable packet", "error", derr)
			} else {
				msg.ReplyTo = tc
				sink.TakeMessage(msg)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, "reading packet")
		}
	}
}

// Close closes the connection.
func (tc *TCPClient) Close() error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.conn == nil {
		return nil
	}
	err := tc.conn.Close()
	tc.conn, tc.w = nil, nil
	return err
}
