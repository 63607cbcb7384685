package osc

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrServerStarted is returned when a Server is served a second time.
var ErrServerStarted = errors.New("osc: server already started")

// Server receives OSC messages over UDP datagrams and over SLIP framed TCP
// connections, and hands them to a Destination.
//
// All socket events are funneled into one event loop goroutine, which owns
// the connection table and calls the destination. The destination therefore
// never sees two messages at once.
type Server struct {
	cfg    Config
	sink   Destination
	logger Logger
	framer *Framer

	events chan event
	ready  chan struct{}

	mu       sync.Mutex
	listener net.Listener
	packet   net.PacketConn
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerDecoderOption replaces the decoder used for stream packets and
// datagrams.
func ServerDecoderOption(decode func([]byte) (*Message, error)) ServerOption {
	return func(s *Server) {
		s.framer.Decode = decode
	}
}

type eventKind int

const (
	eventAccepted eventKind = iota
	eventData
	eventClosed
	eventDatagram
	eventInspect
)

type event struct {
	kind    eventKind
	conn    net.Conn
	id      ConnID
	data    []byte
	from    net.Addr
	inspect func(*sessions)
}

// NewServer returns a server for cfg delivering to sink.
func NewServer(cfg Config, sink Destination, opts ...ServerOption) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadBufferSize == 0 {
		cfg.ReadBufferSize = DefaultConfig().ReadBufferSize
	}
	s := &Server{
		cfg:    cfg,
		sink:   sink,
		logger: defaultLogger(),
		framer: &Framer{},
		events: make(chan event, 64),
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.framer.Logger = s.logger
	return s, nil
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// TCPAddr returns the stream listener's address, or nil before Ready.
func (s *Server) TCPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// UDPAddr returns the datagram socket's address, or nil before Ready.
func (s *Server) UDPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.packet == nil {
		return nil
	}
	return s.packet.LocalAddr()
}

// ListenAndServe listens on the configured addresses and serves until ctx is
// canceled or a socket fails. Canceling ctx closes every connection.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.TCPAddr)
	if err != nil {
		return err
	}
	pc, err := net.ListenPacket("udp", s.cfg.UDPAddr)
	if err != nil {
		ln.Close()
		return err
	}
	return s.Serve(ctx, ln, pc)
}

// Serve serves connections accepted from ln and datagrams read from pc. A
// Server serves once; later calls close ln and pc and return
// ErrServerStarted.
func (s *Server) Serve(ctx context.Context, ln net.Listener, pc net.PacketConn) error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		ln.Close()
		pc.Close()
		return ErrServerStarted
	}
	s.listener, s.packet = ln, pc
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("osc server started", "tcp", ln.Addr(), "udp", pc.LocalAddr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		ln.Close()
		pc.Close()
		return nil
	})
	g.Go(func() error {
		return s.acceptLoop(gctx, ln)
	})
	g.Go(func() error {
		return s.packetLoop(gctx, pc)
	})
	g.Go(func() error {
		return s.eventLoop(gctx, g, pc)
	})

	err := g.Wait()
	s.logger.Info("osc server stopped", "tcp", ln.Addr())
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// ConnectionCount returns the number of open stream connections.
func (s *Server) ConnectionCount(ctx context.Context) (int, error) {
	n := make(chan int, 1)
	ev := event{kind: eventInspect, inspect: func(t *sessions) { n <- t.len() }}
	if !s.post(ctx, ev) {
		return 0, ctx.Err()
	}
	select {
	case c := <-n:
		return c, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// post hands ev to the event loop unless ctx ends first.
func (s *Server) post(ctx context.Context, ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				time.Sleep(tempDelay)
				continue
			}
			s.logger.Error("accept error", "error", err)
			return err
		}
		tempDelay = 0
		if !s.post(ctx, event{kind: eventAccepted, conn: conn}) {
			conn.Close()
			return nil
		}
	}
}

func (s *Server) packetLoop(ctx context.Context, pc net.PacketConn) error {
	buf := make([]byte, 65535)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if !s.post(ctx, event{kind: eventDatagram, data: data, from: addr}) {
				return nil
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// readConn reads conn until it fails, posting every chunk.
func (s *Server) readConn(ctx context.Context, id ConnID, conn net.Conn) {
	buf := make([]byte, s.cfg.ReadBufferSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if !s.post(ctx, event{kind: eventData, id: id, data: chunk}) {
				return
			}
		}
		if err != nil {
			s.logger.Debug("connection read ended", "id", id, "error", err)
			s.post(ctx, event{kind: eventClosed, conn: conn})
			return
		}
	}
}

func (s *Server) eventLoop(ctx context.Context, g *errgroup.Group, pc net.PacketConn) error {
	table := newSessions(s.framer)
	defer table.closeAll()

	for {
		var ev event
		select {
		case <-ctx.Done():
			return nil
		case ev = <-s.events:
		}

		switch ev.kind {
		case eventAccepted:
			id := table.accept(ev.conn)
			s.logger.Info("connection accepted", "id", id, "remote_addr", ev.conn.RemoteAddr())
			conn := ev.conn
			g.Go(func() error {
				s.readConn(ctx, id, conn)
				return nil
			})

		case eventData:
			if !table.receive(ev.id, ev.data, s.sink) {
				s.logger.Warn("data for unknown connection", "id", ev.id)
			}

		case eventClosed:
			id, partial, ok := table.disconnect(ev.conn)
			ev.conn.Close()
			if !ok {
				s.logger.Warn("disconnect from untracked connection", "remote_addr", ev.conn.RemoteAddr())
				continue
			}
			if partial {
				s.logger.Warn("connection closed inside a packet", "id", id)
			}
			s.logger.Info("connection closed", "id", id, "remote_addr", ev.conn.RemoteAddr())

		case eventDatagram:
			msg, err := s.framer.decode(ev.data)
			if err != nil {
				s.logger.Warn("dropping undecodable datagram", "from", ev.from, "error", err)
				continue
			}
			msg.ReplyTo = s.datagramReplier(pc, ev.from)
			s.sink.TakeMessage(msg)

		case eventInspect:
			ev.inspect(table)
		}
	}
}

// datagramReplier returns the reply destination for a datagram from addr:
// the sender's host at the configured reply port.
func (s *Server) datagramReplier(pc net.PacketConn, from net.Addr) Replier {
	to := from
	if ua, ok := from.(*net.UDPAddr); ok && s.cfg.ReplyPort != 0 {
		to = &net.UDPAddr{IP: ua.IP, Port: s.cfg.ReplyPort, Zone: ua.Zone}
	}
	return &datagramReplier{conn: pc, addr: to}
}

// datagramReplier sends replies as datagrams from the server's socket.
type datagramReplier struct {
	conn net.PacketConn
	addr net.Addr
}

func (r *datagramReplier) Reply(msg *Message) error {
	_, err := r.conn.WriteTo(msg.Bytes(), r.addr)
	return err
}
