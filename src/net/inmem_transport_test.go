package net

import (
	"reflect"
	"testing"
	"time"
)

func linkedInmemPair() (*InmemTransport, *InmemTransport) {
	addr1, trans1 := NewInmemTransport("")
	addr2, trans2 := NewInmemTransport("")

	trans1.Connect(addr2, trans2)
	trans2.Connect(addr1, trans1)

	return trans1, trans2
}

func TestInmemTransportSend(t *testing.T) {
	trans1, trans2 := linkedInmemPair()
	defer trans1.Close()
	defer trans2.Close()

	msg := &VersionMessage{From: trans1.LocalAddr(), ProtocolVersion: ProtocolVersion}
	if err := trans1.Send(trans2.LocalAddr(), msg); err != nil {
		t.Fatal(err)
	}

	select {
	case rpc := <-trans2.Consumer():
		if !reflect.DeepEqual(rpc.Command, msg) {
			t.Fatalf("received %#v, expected %#v", rpc.Command, msg)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timed out waiting for message")
	}
}

func TestInmemTransportUnknownPeer(t *testing.T) {
	_, trans := NewInmemTransport("")
	defer trans.Close()

	err := trans.Send("nowhere", &VersionMessage{})
	if err == nil {
		t.Fatal("Send to an unknown peer should fail")
	}
}

func TestInmemTransportBroadcast(t *testing.T) {
	_, trans1 := NewInmemTransport("")
	addr2, trans2 := NewInmemTransport("")
	addr3, trans3 := NewInmemTransport("")
	defer trans1.Close()
	defer trans2.Close()
	defer trans3.Close()

	trans1.Connect(addr2, trans2)
	trans1.Connect(addr3, trans3)

	msg := &SendEventMessage{From: trans1.LocalAddr()}
	if err := trans1.Broadcast(msg); err != nil {
		t.Fatal(err)
	}

	for _, trans := range []*InmemTransport{trans2, trans3} {
		select {
		case rpc := <-trans.Consumer():
			if !reflect.DeepEqual(rpc.Command, msg) {
				t.Fatalf("received %#v, expected %#v", rpc.Command, msg)
			}
		case <-time.After(200 * time.Millisecond):
			t.Fatal("timed out waiting for broadcast")
		}
	}
}
