package net

// Transport provides an interface for network transports to allow a node to
// exchange protocol messages with other nodes. Messages are fire-and-forget;
// anything that needs an answer gets one as another message.
type Transport interface {

	// Listen starts the transport listening.
	Listen()

	// Consumer returns a channel that can be used to consume inbound protocol
	// messages.
	Consumer() <-chan RPC

	// LocalAddr is used to return our local address.
	LocalAddr() string

	// AddPeer registers a peer address for Send and Broadcast.
	AddPeer(addr string)

	// Peers returns the registered peer addresses.
	Peers() []string

	// Send delivers a command to the target peer.
	Send(target string, command interface{}) error

	// Broadcast delivers a command to every registered peer.
	Broadcast(command interface{}) error

	// Close permanently closes a transport, stopping any associated
	// goroutines and freeing other resources.
	Close() error
}
