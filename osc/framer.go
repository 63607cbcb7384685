package osc

import (
	"bytes"
	"io"

	"github.com/Lobaro/slip"
)

// SLIP (RFC 1055) special bytes, used to delimit packets on stream
// connections.
const (
	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD
)

// FrameBuffer is the receive state of one stream connection: the bytes of
// the packet being reassembled and the SLIP decoder flags.
type FrameBuffer struct {
	buf bytes.Buffer
	// escaped is set when the previous byte was an unescaped ESC.
	escaped bool
	// afterEnd is set when the previous byte was an unescaped END.
	afterEnd bool
}

// Len returns the number of bytes of the packet being reassembled.
func (fb *FrameBuffer) Len() int {
	return fb.buf.Len()
}

// Pending reports whether the stream stopped inside a packet: bytes or an
// escape arrived after the last END.
func (fb *FrameBuffer) Pending() bool {
	return !fb.afterEnd && (fb.buf.Len() > 0 || fb.escaped)
}

// Framer splits SLIP framed byte streams into OSC packets.
type Framer struct {
	// Decode turns a packet into a message. Defaults to ParseMessage.
	Decode func([]byte) (*Message, error)
	Logger Logger
}

// Consume feeds a chunk of stream data through fb. Every packet completed by
// the chunk is decoded, given the reply destination and handed to sink.
// Chunks may split packets anywhere, escape sequences included.
func (f *Framer) Consume(chunk []byte, fb *FrameBuffer, sink Destination, reply Replier) {
	for _, c := range chunk {
		if fb.escaped {
			fb.escaped = false
			fb.afterEnd = false
			switch c {
			case slipEscEnd:
				fb.buf.WriteByte(slipEnd)
			case slipEscEsc:
				fb.buf.WriteByte(slipEsc)
			default:
				f.logger().Warn("osc: invalid SLIP escape", "byte", c)
				fb.buf.WriteByte(c)
			}
			continue
		}

		switch c {
		case slipEnd:
			if fb.buf.Len() > 0 {
				f.emit(fb.buf.Bytes(), sink, reply)
				fb.buf.Reset()
			}
			fb.afterEnd = true
		case slipEsc:
			fb.escaped = true
			fb.afterEnd = false
		default:
			fb.afterEnd = false
			fb.buf.WriteByte(c)
		}
	}
}

func (f *Framer) emit(packet []byte, sink Destination, reply Replier) {
	msg, err := f.decode(packet)
	if err != nil {
		f.logger().Warn("osc: dropping undecodable packet", "error", err, "size", len(packet))
		return
	}
	msg.ReplyTo = reply
	sink.TakeMessage(msg)
}

func (f *Framer) decode(packet []byte) (*Message, error) {
	if f.Decode == nil {
		return ParseMessage(packet)
	}
	return f.Decode(packet)
}

func (f *Framer) logger() Logger {
	if f.Logger == nil {
		return defaultLogger()
	}
	return f.Logger
}

// WriteFrame writes msg to w as one SLIP packet.
func WriteFrame(w io.Writer, msg *Message) error {
	return slip.NewWriter(w).WritePacket(msg.Bytes())
}
