package node

import (
	"sync/atomic"
)

// State captures the state of a strand node: Gossiping, Suspended, or
// Shutdown.
type State uint32

const (
	//Gossiping is the normal operating state of a node.
	Gossiping State = iota
	//Suspended is initialised, but not gossiping.
	Suspended
	//Shutdown is shutdown.
	Shutdown
)

// String ...
func (s State) String() string {
	switch s {
	case Gossiping:
		return "Gossiping"
	case Suspended:
		return "Suspended"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

type state struct {
	state uint32
}

func (b *state) getState() State {
	return State(atomic.LoadUint32(&b.state))
}

func (b *state) setState(s State) {
	atomic.StoreUint32(&b.state, uint32(s))
}
