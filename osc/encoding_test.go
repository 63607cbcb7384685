package osc

import (
	"bytes"
	"testing"

	"github.com/maxatome/go-testdeep/td"
)

func TestPadBytesNeeded(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{0, 4},
		{1, 3},
		{2, 2},
		{3, 1},
		{4, 4},
		{5, 3},
		{7, 1},
		{8, 4},
		{10, 2},
		{32, 4},
		{63, 1},
		{64, 4},
	}
	for _, tt := range tests {
		td.Cmp(t, padBytesNeeded(tt.n), tt.want, "padBytesNeeded(%d)", tt.n)
	}
}

func TestWritePaddedString(t *testing.T) {
	tests := []struct {
		s    string
		want []byte
	}{
		{"", []byte{0, 0, 0, 0}},
		{"a", []byte{'a', 0, 0, 0}},
		{"abc", []byte{'a', 'b', 'c', 0}},
		{"abcd", []byte{'a', 'b', 'c', 'd', 0, 0, 0, 0}},
		{"testString", append([]byte("testString"), 0, 0)},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		n := writePaddedString(tt.s, &buf)
		td.Cmp(t, n, len(tt.want))
		td.Cmp(t, buf.Bytes(), tt.want, "writePaddedString(%q)", tt.s)
	}
}

func TestMessage_Bytes(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
		want []byte
	}{
		{
			name: "numbers and strings",
			msg:  NewMessage("/foo", 1000, -1, "hello", float32(1.234)),
			want: []byte{
				'/', 'f', 'o', 'o', 0, 0, 0, 0,
				',', 'i', 'i', 's', 'f', 0, 0, 0,
				0x00, 0x00, 0x03, 0xe8,
				0xff, 0xff, 0xff, 0xff,
				'h', 'e', 'l', 'l', 'o', 0, 0, 0,
				0x3f, 0x9d, 0xf3, 0xb6,
			},
		},
		{
			name: "blob",
			msg:  NewMessage("/b", []byte{1, 2, 3, 4, 5}),
			want: []byte{
				'/', 'b', 0, 0,
				',', 'b', 0, 0,
				0, 0, 0, 5,
				1, 2, 3, 4, 5, 0, 0, 0,
			},
		},
		{
			name: "markers carry no payload",
			msg:  NewMessage("/t", true, false, nil, Impulse),
			want: []byte{
				'/', 't', 0, 0,
				',', 'T', 'F', 'N', 'I', 0, 0, 0,
			},
		},
		{
			name: "no arguments",
			msg:  NewMessage("/"),
			want: []byte{'/', 0, 0, 0, ',', 0, 0, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			td.Cmp(t, tt.msg.Bytes(), tt.want)
			b, err := tt.msg.MarshalBinary()
			td.CmpNoError(t, err)
			td.Cmp(t, b, tt.want)
		})
	}
}

func TestParseMessage(t *testing.T) {
	for _, msg := range []*Message{
		NewMessage("/"),
		NewMessage("/foo", 1000, -1, "hello", 1.5),
		NewMessage("/cue/1/start", "go now", true, []byte("ABC"), 3.5),
		NewMessage("/blob", []byte{}, []byte{1}, []byte{1, 2, 3, 4}),
		NewMessage("!ping", nil, Impulse, false),
		NewMessage("/a/*/{b,c}", "", "abcd"),
	} {
		got, err := ParseMessage(msg.Bytes())
		if td.CmpNoError(t, err, msg.String()) {
			td.CmpTrue(t, got.Equals(msg), "got %s, want %s", got, msg)
		}
	}
}

func TestParseMessage_Errors(t *testing.T) {
	_, err := ParseMessage(append([]byte("#bundle\x00"), make([]byte, 8)...))
	td.Cmp(t, err, ErrBundle)

	for name, data := range map[string][]byte{
		"empty":             nil,
		"unterminated":      []byte("/foo"),
		"illegal address":   []byte("foo\x00,\x00\x00\x00"),
		"missing type tags": []byte("/foo\x00\x00\x00\x00"),
		"no comma":          []byte("/foo\x00\x00\x00\x00i\x00\x00\x00"),
		"short int":         []byte("/foo\x00\x00\x00\x00,i\x00\x00\x00\x01"),
		"short float":       []byte("/foo\x00\x00\x00\x00,f\x00\x00"),
		"long blob":         []byte("/foo\x00\x00\x00\x00,b\x00\x00\x00\x00\x00\x09abc\x00"),
		"unknown tag":       []byte("/foo\x00\x00\x00\x00,h\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00"),
	} {
		_, err := ParseMessage(data)
		td.CmpError(t, err, name)
	}
}
