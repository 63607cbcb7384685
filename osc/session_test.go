package osc

import (
	"bytes"
	"testing"

	"github.com/maxatome/go-testdeep/td"
)

type fakeConn struct {
	bytes.Buffer
	closed bool
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestSessions_IDsNeverReused(t *testing.T) {
	table := newSessions(&Framer{})

	c0 := &fakeConn{}
	td.Cmp(t, table.accept(c0), ConnID(0))

	id, partial, ok := table.disconnect(c0)
	td.CmpTrue(t, ok)
	td.CmpFalse(t, partial)
	td.Cmp(t, id, ConnID(0))
	td.Cmp(t, table.len(), 0)
	_, ok = table.lookup(0)
	td.CmpFalse(t, ok)

	c1 := &fakeConn{}
	td.Cmp(t, table.accept(c1), ConnID(1))
	td.Cmp(t, table.accept(&fakeConn{}), ConnID(2))
	td.Cmp(t, table.len(), 2)

	handle, ok := table.lookup(1)
	td.CmpTrue(t, ok)
	td.CmpShallow(t, handle, c1)
}

func TestSessions_DisconnectUnknown(t *testing.T) {
	table := newSessions(&Framer{})
	table.accept(&fakeConn{})

	_, _, ok := table.disconnect(&fakeConn{})
	td.CmpFalse(t, ok)
	td.Cmp(t, table.len(), 1)
}

func TestSessions_Receive(t *testing.T) {
	table := newSessions(&Framer{})
	conn := &fakeConn{}
	id := table.accept(conn)

	var sink collector
	frame := slipEncode(NewMessage("/hello", "world").Bytes())
	td.CmpTrue(t, table.receive(id, frame[:5], &sink))
	td.CmpLen(t, sink.msgs, 0)
	td.CmpTrue(t, table.receive(id, frame[5:], &sink))
	if !td.CmpLen(t, sink.msgs, 1) {
		return
	}

	// Replies go back on the connection the message came from.
	td.CmpNoError(t, sink.msgs[0].ReplyTo.Reply(NewMessage("/ack")))
	var (
		f    Framer
		fb   FrameBuffer
		back collector
	)
	f.Consume(conn.Bytes(), &fb, &back, nil)
	if td.CmpLen(t, back.msgs, 1) {
		td.Cmp(t, back.msgs[0].AddressPattern(), "/ack")
	}

	td.CmpFalse(t, table.receive(id+1, frame, &sink))
}

func TestSessions_BufferDroppedOnDisconnect(t *testing.T) {
	table := newSessions(&Framer{})
	conn := &fakeConn{}
	id := table.accept(conn)

	var sink collector
	frame := slipEncode(NewMessage("/a").Bytes())
	table.receive(id, frame[:4], &sink)
	_, partial, ok := table.disconnect(conn)
	td.CmpTrue(t, ok)
	td.CmpTrue(t, partial)

	td.CmpFalse(t, table.receive(id, frame[4:], &sink))
	td.CmpLen(t, sink.msgs, 0)
}

func TestSessions_CloseAll(t *testing.T) {
	table := newSessions(&Framer{})
	conns := []*fakeConn{{}, {}, {}}
	for _, c := range conns {
		table.accept(c)
	}
	table.closeAll()
	td.Cmp(t, table.len(), 0)
	for _, c := range conns {
		td.CmpTrue(t, c.closed)
	}
}
