package net

import (
	"reflect"
	"testing"
	"time"

	"github.com/strandnet/strand/src/common"
)

func TestTCPTransportSend(t *testing.T) {
	logger := common.NewTestEntry(t, "net")

	trans1, err := NewTCPTransport("127.0.0.1:0", time.Second, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer trans1.Close()
	trans1.Listen()

	trans2, err := NewTCPTransport("127.0.0.1:0", time.Second, logger)
	if err != nil {
		t.Fatal(err)
	}
	defer trans2.Close()
	trans2.Listen()

	msg := &EventMessage{From: trans2.LocalAddr(), Raw: []byte("payload")}
	if err := trans2.Send(trans1.LocalAddr(), msg); err != nil {
		t.Fatal(err)
	}

	select {
	case rpc := <-trans1.Consumer():
		if !reflect.DeepEqual(rpc.Command, msg) {
			t.Fatalf("received %#v, expected %#v", rpc.Command, msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	// The outbound connection is pooled; a second send reuses it.
	if err := trans2.Send(trans1.LocalAddr(), msg); err != nil {
		t.Fatal(err)
	}
	select {
	case <-trans1.Consumer():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for second message")
	}
}
