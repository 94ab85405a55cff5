package graph

import "time"

// GenesisContents is the fixed payload of every genesis event. All nodes
// derive the same genesis event for a given rotation window.
var GenesisContents = []byte("strand genesis")

// NewGenesis returns the distinguished root event for a rotation window:
// fixed content, all-null parents, layer 0, and the window's start timestamp.
func NewGenesis(timestamp uint64) *Event {
	return &Event{
		Header: Header{
			Timestamp: timestamp,
			Layer:     0,
		},
		Content: append([]byte{}, GenesisContents...),
	}
}

// IsGenesis returns true if the event has the shape of a genesis event:
// layer 0 and no parents. Only one such event exists in the graph at a time.
func IsGenesis(e *Event) bool {
	return e.Header.Layer == 0 && len(e.Header.ParentIDs()) == 0
}

// CurrentGenesisTimestamp returns the start of the rotation window containing
// now. It is a pure function of the schedule anchor and the period, so all
// nodes compute the same value without coordination. When rotation is
// disabled (period 0) the anchor itself is returned.
func CurrentGenesisTimestamp(anchor uint64, rotation time.Duration, now uint64) uint64 {
	if rotation <= 0 || now <= anchor {
		return anchor
	}
	period := uint64(rotation / time.Millisecond)
	return anchor + ((now-anchor)/period)*period
}

// NextRotationTimestamp returns the next rotation boundary strictly after
// now, or 0 when rotation is disabled.
func NextRotationTimestamp(anchor uint64, rotation time.Duration, now uint64) uint64 {
	if rotation <= 0 {
		return 0
	}
	period := uint64(rotation / time.Millisecond)
	return CurrentGenesisTimestamp(anchor, rotation, now) + period
}
