// Copyright 2013 - 2015 Sebastian Ruml <sebastian.ruml@gmail.com>

/*
Package osc builds, encodes, prints, parses and routes OpenSoundControl
messages, and serves them over UDP and SLIP framed TCP.

The implementation is based on the Open Sound Control 1.0 Specification
(http://opensoundcontrol.org/spec-1_0) and the types added by OSC 1.1.

# Messages

A Message is an address pattern and a list of arguments. The address pattern
starts with '/', or with '!' for control messages addressed to the receiving
server. The type tag string is derived from the arguments.

Supported argument types: 's' (string), 'b' (blob), 'i' (Int32),
'f' (Float32), 'T' (True), 'F' (False), 'N' (Null) and 'I' (Impulse). Go
integers of any width become Int32 and Go floats become Float32.

Bundles and time tags are not supported.

# Text form

Messages can be written as one line of text, handy on a console:

	/cue/1/start "go now" \T #blobQUJD 3.5

ParseLine reads such a line and Message.String writes one.

# Address patterns

CompilePattern turns an address pattern with '*', '?', '[]', '[!]' and
'{,}' wildcards into a Pattern matching whole addresses. IsLegalAddress,
IsLegalAddressComponent and IsLegalMethod check the characters of addresses.

# Usage

OSC client example:

	client, _ := osc.NewClient("localhost:53000")
	msg := osc.NewMessage("/osc/address", int32(111), true, "hello")
	client.Send(msg)

OSC server example:

	d := osc.NewDispatcher()
	d.AddMsgHandler("/message/address", func(msg *osc.Message) {
	    fmt.Println(msg)
	})

	server, _ := osc.NewServer(osc.DefaultConfig(), d)
	server.ListenAndServe(ctx)

The server reads datagrams and SLIP framed TCP streams. Every stream
connection gets an ID, a receive buffer and SLIP state for as long as it is
open. Replies go to Message.ReplyTo.
*/
package osc
