package net

import (
	"github.com/strandnet/strand/src/graph"
)

// ProtocolVersion is exchanged during the peer handshake. Mismatched versions
// are a connection-level concern: the node logs and ignores the peer, it does
// not try to translate.
const ProtocolVersion uint32 = 1

// MessageType tags a protocol message on the wire.
type MessageType uint8

const (
	// MsgEvent carries a single wire-encoded event.
	MsgEvent MessageType = 1
	// MsgFetchEvents carries the sender's unreferenced tips and asks for
	// everything the sender appears to be missing.
	MsgFetchEvents MessageType = 2
	// MsgSendEvent asks for one specific event by ID.
	MsgSendEvent MessageType = 3
	// MsgVersion is the handshake.
	MsgVersion MessageType = 4
)

// VersionMessage is the handshake exchanged when peers meet.
type VersionMessage struct {
	From            string
	ProtocolVersion uint32
}

// FetchEventsMessage doubles as a tip report and a sync request: it carries
// the sender's unreferenced-tip index, from which the receiver works out
// which events the sender is missing and pushes them back.
type FetchEventsMessage struct {
	From      string
	UnrefTips map[uint64][]graph.EventID
}

// EventMessage carries one event in its wire encoding.
type EventMessage struct {
	From string
	Raw  []byte
}

// SendEventMessage asks the receiver to send one specific event back.
type SendEventMessage struct {
	From string
	ID   graph.EventID
}

// RPC is an inbound protocol message handed to the consumer channel.
type RPC struct {
	Command interface{}
}
