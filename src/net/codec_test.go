package net

import (
	"bufio"
	"bytes"
	"reflect"
	"testing"

	"github.com/strandnet/strand/src/graph"
)

func roundTrip(t *testing.T, command interface{}) interface{} {
	buf := new(bytes.Buffer)
	if err := writeCommand(buf, command); err != nil {
		t.Fatal(err)
	}

	decoded, err := readCommand(bufio.NewReader(buf))
	if err != nil {
		t.Fatal(err)
	}
	return decoded
}

func TestCodecVersionMessage(t *testing.T) {
	msg := &VersionMessage{
		From:            "127.0.0.1:1337",
		ProtocolVersion: ProtocolVersion,
	}

	decoded := roundTrip(t, msg)
	if !reflect.DeepEqual(decoded, msg) {
		t.Fatalf("decoded %#v should equal %#v", decoded, msg)
	}
}

func TestCodecEventMessage(t *testing.T) {
	msg := &EventMessage{
		From: "127.0.0.1:1337",
		Raw:  []byte("raw event bytes"),
	}

	decoded := roundTrip(t, msg)
	if !reflect.DeepEqual(decoded, msg) {
		t.Fatalf("decoded %#v should equal %#v", decoded, msg)
	}
}

func TestCodecFetchEventsMessage(t *testing.T) {
	msg := &FetchEventsMessage{
		From: "127.0.0.1:1337",
		UnrefTips: map[uint64][]graph.EventID{
			0: {{1}},
			7: {{2}, {3}},
		},
	}

	decoded := roundTrip(t, msg)
	if !reflect.DeepEqual(decoded, msg) {
		t.Fatalf("decoded %#v should equal %#v", decoded, msg)
	}
}

func TestCodecSendEventMessage(t *testing.T) {
	msg := &SendEventMessage{
		From: "127.0.0.1:1337",
		ID:   graph.EventID{0xaa, 0xbb},
	}

	decoded := roundTrip(t, msg)
	if !reflect.DeepEqual(decoded, msg) {
		t.Fatalf("decoded %#v should equal %#v", decoded, msg)
	}
}

func TestCodecUnknownType(t *testing.T) {
	if _, _, err := encodeCommand("not a command"); err == nil {
		t.Fatal("encodeCommand should reject unknown command types")
	}

	buf := new(bytes.Buffer)
	buf.Write([]byte{0xff, 0, 0, 0, 0})
	if _, err := readCommand(bufio.NewReader(buf)); err == nil {
		t.Fatal("readCommand should reject unknown message types")
	}
}

func TestCodecFrameLimit(t *testing.T) {
	buf := new(bytes.Buffer)
	// Claims a payload far over the frame cap.
	buf.Write([]byte{byte(MsgEvent), 0xff, 0xff, 0xff, 0xff})
	if _, err := readCommand(bufio.NewReader(buf)); err == nil {
		t.Fatal("readCommand should reject oversized frames")
	}
}
