package osc

import (
	"log/slog"
	"strings"
)

// Message represents a single OSC message. An OSC message consists of an OSC
// address pattern and zero or more arguments. The type tag string is derived
// from the arguments and cannot be set directly.
//
// An address pattern starting with '!' marks a control message, which is
// addressed to the receiving server itself rather than to a method.
type Message struct {
	addressPattern string
	typeTags       string
	arguments      []Value
	addressParts   []string

	// ReplyTo is where a response to the message should go. It is set on
	// received messages and nil on locally built ones.
	ReplyTo Replier
	// UserData is carried along with the message and never interpreted.
	UserData any
}

// Replier sends a message back to the peer a message came from.
type Replier interface {
	Reply(msg *Message) error
}

// NewMessage returns a new Message with the given address pattern and
// arguments. Arguments are classified with ValueOf; unsupported ones are
// dropped. NewMessage returns nil if the address pattern is not valid.
func NewMessage(addressPattern string, args ...any) *Message {
	msg := &Message{}
	if !msg.SetAddressPattern(addressPattern) {
		return nil
	}
	msg.SetArguments(args...)
	return msg
}

// AddressPattern returns the address pattern.
func (msg *Message) AddressPattern() string {
	return msg.addressPattern
}

// SetAddressPattern replaces the address pattern. A pattern that is empty or
// does not begin with '/' or '!' is rejected, leaving the old one in place.
// It reports whether the pattern was accepted.
func (msg *Message) SetAddressPattern(pattern string) bool {
	if pattern == "" || (pattern[0] != '/' && pattern[0] != '!') {
		slog.Default().Warn("osc: rejecting invalid address pattern", "pattern", pattern, "current", msg.addressPattern)
		return false
	}
	msg.addressPattern = strings.Clone(pattern)
	msg.addressParts = nil
	return true
}

// IsControl reports whether msg is a control message.
func (msg *Message) IsControl() bool {
	return strings.HasPrefix(msg.addressPattern, "!")
}

// AddressParts returns the slash separated parts of the address pattern,
// without the empty part before the leading slash. The result is computed
// once per address pattern. Control messages have no address parts, in which
// case ok is false.
func (msg *Message) AddressParts() (parts []string, ok bool) {
	if msg.IsControl() {
		slog.Default().Warn("osc: address parts requested for control message", "pattern", msg.addressPattern)
		return nil, false
	}
	if msg.addressParts == nil {
		msg.addressParts = strings.Split(msg.addressPattern, "/")[1:]
	}
	return append([]string(nil), msg.addressParts...), true
}

// TypeTags returns the type tag string, for example ",sif".
func (msg *Message) TypeTags() string {
	if msg.typeTags == "" {
		return ","
	}
	return msg.typeTags
}

// Arguments returns a copy of the argument list.
func (msg *Message) Arguments() []Value {
	return append([]Value(nil), msg.arguments...)
}

// Argument returns the i'th argument.
func (msg *Message) Argument(i int) (Value, bool) {
	if i < 0 || i >= len(msg.arguments) {
		return Value{}, false
	}
	return msg.arguments[i], true
}

// CountArguments returns the number of arguments.
func (msg *Message) CountArguments() int {
	return len(msg.arguments)
}

// SetArguments replaces the argument list. Every argument is classified with
// ValueOf; the ones it rejects contribute neither an argument nor a type tag.
func (msg *Message) SetArguments(args ...any) {
	msg.arguments = nil
	msg.typeTags = ","
	msg.Append(args...)
}

// Append appends the given arguments to the argument list, classifying them
// the same way SetArguments does.
func (msg *Message) Append(args ...any) {
	tags := []byte(msg.TypeTags())
	for _, arg := range args {
		v, ok := ValueOf(arg)
		if !ok {
			continue
		}
		msg.arguments = append(msg.arguments, v)
		tags = append(tags, v.TypeTag())
	}
	msg.typeTags = string(tags)
}

// Equals reports whether m has the same address pattern and arguments as
// msg. Reply destination and user data are not compared.
func (msg *Message) Equals(m *Message) bool {
	if msg == nil || m == nil {
		return msg == m
	}
	if msg.addressPattern != m.addressPattern || len(msg.arguments) != len(m.arguments) {
		return false
	}
	for i, arg := range msg.arguments {
		if !arg.Equal(m.arguments[i]) {
			return false
		}
	}
	return true
}

// Clone returns a copy of msg sharing its reply destination and user data.
func (msg *Message) Clone() *Message {
	c := *msg
	c.arguments = msg.Arguments()
	c.addressParts = nil
	return &c
}
