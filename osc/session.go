package osc

import (
	"io"
	"sync"
)

// ConnID identifies a stream connection for the lifetime of a server. IDs
// are handed out in accept order and never reused.
type ConnID uint64

// session is everything the server keeps for one stream connection. The
// handle, buffer and framing state live in one record so they are added and
// removed together.
type session struct {
	id     ConnID
	handle io.ReadWriteCloser
	frames FrameBuffer
	reply  *streamReplier
}

// sessions is the connection table of a server. It is owned by the server's
// event loop and must not be touched from any other goroutine.
type sessions struct {
	next   ConnID
	byID   map[ConnID]*session
	framer *Framer
}

func newSessions(framer *Framer) *sessions {
	return &sessions{byID: make(map[ConnID]*session), framer: framer}
}

// accept starts tracking handle and returns its new ID.
func (s *sessions) accept(handle io.ReadWriteCloser) ConnID {
	id := s.next
	s.next++
	s.byID[id] = &session{
		id:     id,
		handle: handle,
		reply:  &streamReplier{w: handle},
	}
	return id
}

// receive runs a chunk of data read from connection id through the framer.
// It reports false if the connection is not tracked.
func (s *sessions) receive(id ConnID, chunk []byte, sink Destination) bool {
	sess, ok := s.byID[id]
	if !ok {
		return false
	}
	s.framer.Consume(chunk, &sess.frames, sink, sess.reply)
	return true
}

// disconnect forgets the connection whose handle is handle. It returns the
// connection's ID and whether a packet was cut off, or ok false if no
// tracked connection has that handle.
func (s *sessions) disconnect(handle io.ReadWriteCloser) (id ConnID, partial, ok bool) {
	for cid, sess := range s.byID {
		if sess.handle == handle {
			delete(s.byID, cid)
			return cid, sess.frames.Pending(), true
		}
	}
	return 0, false, false
}

// lookup returns the handle of connection id.
func (s *sessions) lookup(id ConnID) (io.ReadWriteCloser, bool) {
	sess, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return sess.handle, true
}

// len returns the number of tracked connections.
func (s *sessions) len() int {
	return len(s.byID)
}

// closeAll closes and forgets every connection.
func (s *sessions) closeAll() {
	for id, sess := range s.byID {
		sess.handle.Close()
		delete(s.byID, id)
	}
}

// streamReplier sends replies as SLIP frames on the connection a message
// arrived on.
type streamReplier struct {
	mu sync.Mutex
	w  io.Writer
}

func (r *streamReplier) Reply(msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return WriteFrame(r.w, msg)
}
