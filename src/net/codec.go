package net

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ugorji/go/codec"
)

// maxFrameLength caps inbound frames so a misbehaving peer cannot make us
// allocate unbounded memory.
const maxFrameLength = 8 << 20

func jsonHandle() *codec.JsonHandle {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	return jh
}

func encodeCommand(command interface{}) (MessageType, []byte, error) {
	var msgType MessageType
	switch command.(type) {
	case *EventMessage:
		msgType = MsgEvent
	case *FetchEventsMessage:
		msgType = MsgFetchEvents
	case *SendEventMessage:
		msgType = MsgSendEvent
	case *VersionMessage:
		msgType = MsgVersion
	default:
		return 0, nil, fmt.Errorf("unknown command type %T", command)
	}

	b := new(bytes.Buffer)
	enc := codec.NewEncoder(b, jsonHandle())
	if err := enc.Encode(command); err != nil {
		return 0, nil, err
	}

	return msgType, b.Bytes(), nil
}

func decodeCommand(msgType MessageType, payload []byte) (interface{}, error) {
	var command interface{}
	switch msgType {
	case MsgEvent:
		command = new(EventMessage)
	case MsgFetchEvents:
		command = new(FetchEventsMessage)
	case MsgSendEvent:
		command = new(SendEventMessage)
	case MsgVersion:
		command = new(VersionMessage)
	default:
		return nil, fmt.Errorf("unknown message type %d", msgType)
	}

	dec := codec.NewDecoder(bytes.NewBuffer(payload), jsonHandle())
	if err := dec.Decode(command); err != nil {
		return nil, err
	}

	return command, nil
}

// writeCommand frames a command as [type][uint32 length][payload].
func writeCommand(w io.Writer, command interface{}) error {
	msgType, payload, err := encodeCommand(command)
	if err != nil {
		return err
	}

	header := [5]byte{byte(msgType)}
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}

	return nil
}

// readCommand reads one framed command.
func readCommand(r *bufio.Reader) (interface{}, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[1:])
	if length > maxFrameLength {
		return nil, fmt.Errorf("frame too large: %d bytes", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}

	return decodeCommand(MessageType(header[0]), payload)
}
