package osc

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// BundleTag starts every OSC bundle. Bundles are not supported.
const BundleTag = "#bundle"

// ErrBundle is returned when a bundle is found where a message was expected.
var ErrBundle = errors.New("osc: bundles are not supported")

////
// Encoding
////

// Bytes serializes the message into the OSC binary format:
// 1. OSC Address Pattern
// 2. OSC Type Tag String
// 3. OSC Arguments
func (msg *Message) Bytes() []byte {
	data := new(bytes.Buffer)
	writePaddedString(msg.addressPattern, data)
	writePaddedString(msg.TypeTags(), data)

	for _, arg := range msg.arguments {
		switch arg.kind {
		case KindString:
			writePaddedString(arg.s, data)
		case KindBlob:
			writeBlob(arg.b, data)
		case KindInt32:
			data.Write(binary.BigEndian.AppendUint32(nil, uint32(arg.i)))
		case KindFloat32:
			data.Write(binary.BigEndian.AppendUint32(nil, math.Float32bits(arg.f)))
		case KindTrue, KindFalse, KindNull, KindImpulse:
			// The type tag is the whole value.
		}
	}

	return data.Bytes()
}

// MarshalBinary implements encoding.BinaryMarshaler. It never fails.
func (msg *Message) MarshalBinary() ([]byte, error) {
	return msg.Bytes(), nil
}

// writeBlob writes data as an OSC blob: its length as a big-endian int32,
// the bytes, and zero padding to a multiple of 4.
func writeBlob(data []byte, buff *bytes.Buffer) int {
	buff.Write(binary.BigEndian.AppendUint32(nil, uint32(len(data))))
	buff.Write(data)
	pad := blobPadding(len(data))
	buff.Write(make([]byte, pad))
	return 4 + len(data) + pad
}

// writePaddedString writes str, its terminating zero byte and enough zero
// bytes to fill up to the next multiple of 4. Returns the number of bytes
// written.
func writePaddedString(str string, buff *bytes.Buffer) int {
	n, _ := buff.WriteString(str)
	pad := padBytesNeeded(n)
	buff.Write(make([]byte, pad))
	return n + pad
}

// padBytesNeeded determines how many bytes are needed after a string of
// elementLen bytes, terminator included, to fill up to the next 4 byte
// boundary.
func padBytesNeeded(elementLen int) int {
	return 4*(elementLen/4+1) - elementLen
}

// blobPadding is the padding after a blob, which has no terminator.
func blobPadding(n int) int {
	return (4 - n%4) % 4
}

////
// Decoding
////

// ParseMessage decodes one OSC message in binary format.
func ParseMessage(data []byte) (*Message, error) {
	if bytes.HasPrefix(data, []byte(BundleTag)) {
		return nil, ErrBundle
	}

	address, data, err := readPaddedString(data)
	if err != nil {
		return nil, errors.Wrap(err, "reading address pattern")
	}
	msg := &Message{}
	if !msg.SetAddressPattern(address) {
		return nil, errors.Errorf("invalid address pattern %q", address)
	}

	typetags, data, err := readPaddedString(data)
	if err != nil {
		return nil, errors.Wrap(err, "reading type tags")
	}
	if typetags == "" || typetags[0] != ',' {
		return nil, errors.Errorf("unsupported type tag string %q", typetags)
	}

	args := make([]any, 0, len(typetags)-1)
	for i, c := range []byte(typetags[1:]) {
		var v Value
		switch Kind(c) {
		case KindString:
			var s string
			if s, data, err = readPaddedString(data); err != nil {
				return nil, errors.Wrapf(err, "reading argument %d", i)
			}
			v = String(s)
		case KindBlob:
			var b []byte
			if b, data, err = readBlob(data); err != nil {
				return nil, errors.Wrapf(err, "reading argument %d", i)
			}
			v = Blob(b)
		case KindInt32:
			if len(data) < 4 {
				return nil, errors.Errorf("argument %d: expected int32, only %d bytes", i, len(data))
			}
			v = Int32(int32(binary.BigEndian.Uint32(data)))
			data = data[4:]
		case KindFloat32:
			if len(data) < 4 {
				return nil, errors.Errorf("argument %d: expected float32, only %d bytes", i, len(data))
			}
			v = Float32(math.Float32frombits(binary.BigEndian.Uint32(data)))
			data = data[4:]
		case KindTrue, KindFalse, KindNull, KindImpulse:
			v = Value{kind: Kind(c)}
		default:
			return nil, errors.Errorf("unsupported type tag %q", c)
		}
		args = append(args, v)
	}
	msg.SetArguments(args...)

	return msg, nil
}

// readPaddedString reads a zero terminated, padded string and returns it
// with the rest of the data.
func readPaddedString(data []byte) (string, []byte, error) {
	end := bytes.IndexByte(data, 0)
	if end < 0 {
		return "", nil, errors.New("unterminated string")
	}
	str := string(data[:end])
	n := end + padBytesNeeded(end)
	if n > len(data) {
		n = len(data)
	}
	return str, data[n:], nil
}

// readBlob reads a length-prefixed, padded blob and returns it with the rest
// of the data.
func readBlob(data []byte) ([]byte, []byte, error) {
	if len(data) < 4 {
		return nil, nil, errors.New("short blob length")
	}
	n := int(binary.BigEndian.Uint32(data))
	data = data[4:]
	if n < 0 || n > len(data) {
		return nil, nil, errors.Errorf("invalid blob length %d", n)
	}
	blob := data[:n]
	n += blobPadding(n)
	if n > len(data) {
		n = len(data)
	}
	return blob, data[n:], nil
}
