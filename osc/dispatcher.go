package osc

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Destination receives fully decoded messages.
type Destination interface {
	TakeMessage(msg *Message)
}

// DestinationFunc adapts a function to the Destination interface.
type DestinationFunc func(msg *Message)

// TakeMessage calls f(msg).
func (f DestinationFunc) TakeMessage(msg *Message) {
	f(msg)
}

// ControlHandler handles control messages, whose address pattern starts
// with '!'.
type ControlHandler interface {
	HandleControlMessage(msg *Message)
}

// Handler handles an OSC message sent to a method.
type Handler interface {
	HandleMessage(msg *Message)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(msg *Message)

// HandleMessage calls f(msg).
func (f HandlerFunc) HandleMessage(msg *Message) {
	f(msg)
}

// Dispatcher is a Destination that routes every message to the handlers
// whose method address matches the message's address pattern. It is safe
// for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	control  ControlHandler
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// AddMsgHandler registers handler for the method at address. The address
// must be legal and free of wildcard characters, and not registered yet.
func (d *Dispatcher) AddMsgHandler(address string, handler HandlerFunc) error {
	return d.AddHandler(address, handler)
}

// AddHandler is AddMsgHandler for any Handler.
func (d *Dispatcher) AddHandler(address string, handler Handler) error {
	if !IsLegalAddress(address) {
		return errors.Errorf("illegal OSC address %q", address)
	}
	for _, part := range strings.Split(address, "/")[1:] {
		if !IsLegalMethod(part) {
			return errors.Errorf("OSC method address %q may not contain any characters in \"*?,[]{}#\" or empty parts", address)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = make(map[string]Handler)
	}
	if _, ok := d.handlers[address]; ok {
		return errors.Errorf("OSC address %q exists already", address)
	}
	d.handlers[address] = handler
	return nil
}

// RemoveHandler unregisters the handler at address.
func (d *Dispatcher) RemoveHandler(address string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, address)
}

// SetControlHandler sets the handler for control messages. Without one,
// control messages are dropped.
func (d *Dispatcher) SetControlHandler(h ControlHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.control = h
}

// TakeMessage dispatches msg. Implements the Destination interface.
func (d *Dispatcher) TakeMessage(msg *Message) {
	if msg == nil {
		return
	}

	d.mu.RLock()
	control := d.control
	var matched []Handler
	if !msg.IsControl() {
		if p := CompilePattern(msg.AddressPattern()); p != nil {
			for address, handler := range d.handlers {
				if p.Match(address) {
					matched = append(matched, handler)
				}
			}
		}
	}
	d.mu.RUnlock()

	if msg.IsControl() {
		if control != nil {
			control.HandleControlMessage(msg)
		}
		return
	}
	for _, h := range matched {
		h.HandleMessage(msg)
	}
}
