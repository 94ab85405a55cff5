package graph

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/strandnet/strand/src/common"
	"github.com/zeebo/blake3"
)

const (
	// IDLength is the size in bytes of an EventID.
	IDLength = 32

	// NumEventParents is the fixed number of parent slots in a Header. Unused
	// slots hold NullID.
	NumEventParents = 5

	headerLength = 8 + NumEventParents*IDLength + 8
)

// MaxTimestampDrift bounds how far an Event's timestamp may deviate from the
// rotation window it claims to belong to.
const MaxTimestampDrift = 15 * time.Minute

/*******************************************************************************
EventID
*******************************************************************************/

// EventID is the BLAKE3 hash of a Header. It is the primary key of an Event
// everywhere: in the store, in the tip index, and on the wire.
type EventID [IDLength]byte

// NullID is the reserved sentinel for unused parent slots.
var NullID EventID

// IsNull returns true if the ID is the NullID sentinel.
func (id EventID) IsNull() bool {
	return id == NullID
}

// String returns the hex string representation of the ID.
func (id EventID) String() string {
	return common.EncodeToString(id[:])
}

// ParseEventID converts the hex string representation back to an EventID.
func ParseEventID(s string) (EventID, error) {
	var id EventID
	raw, err := common.DecodeFromString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != IDLength {
		return id, fmt.Errorf("event id must be %d bytes, got %d", IDLength, len(raw))
	}
	copy(id[:], raw)
	return id, nil
}

/*******************************************************************************
Header
*******************************************************************************/

// Header ties an Event to its predecessors in the graph. It is immutable once
// created; the ID is a content hash of the header fields only, so two headers
// with identical fields collide to the same ID regardless of payload. This is
// deliberate: identical headers are deduplicated.
type Header struct {
	Timestamp uint64 //milliseconds since epoch
	Parents   [NumEventParents]EventID
	Layer     uint64 //strictly greater than every parent's layer
}

func (h *Header) appendBytes(buf []byte) []byte {
	var scratch [8]byte

	binary.BigEndian.PutUint64(scratch[:], h.Timestamp)
	buf = append(buf, scratch[:]...)

	for _, p := range h.Parents {
		buf = append(buf, p[:]...)
	}

	binary.BigEndian.PutUint64(scratch[:], h.Layer)
	buf = append(buf, scratch[:]...)

	return buf
}

// ID returns the BLAKE3 hash of the header fields.
func (h *Header) ID() EventID {
	return EventID(blake3.Sum256(h.appendBytes(make([]byte, 0, headerLength))))
}

// ParentIDs returns the non-null parent IDs.
func (h *Header) ParentIDs() []EventID {
	res := []EventID{}
	for _, p := range h.Parents {
		if !p.IsNull() {
			res = append(res, p)
		}
	}
	return res
}

/*******************************************************************************
Event
*******************************************************************************/

// Event is the unit of causal history: a Header and an opaque content payload.
// The content is not part of the ID.
type Event struct {
	Header  Header
	Content []byte

	id  *EventID
	hex string
}

// NewEvent creates an Event on top of the graph's current unreferenced tips,
// timestamped with the current wall-clock time.
func NewEvent(g *Graph, content []byte) *Event {
	return NewEventAt(g, NowMillis(), content)
}

// NewEventAt creates an Event on top of the graph's current unreferenced tips
// with an explicit timestamp.
func NewEventAt(g *Graph, timestamp uint64, content []byte) *Event {
	parents, layer := g.SelectParents()
	return &Event{
		Header: Header{
			Timestamp: timestamp,
			Parents:   parents,
			Layer:     layer,
		},
		Content: content,
	}
}

// ID returns the Event's ID; equal to its Header's ID. The value is computed
// once and cached.
func (e *Event) ID() EventID {
	if e.id == nil {
		id := e.Header.ID()
		e.id = &id
	}
	return *e.id
}

// Hex returns the hex string representation of the Event's ID.
func (e *Event) Hex() string {
	if e.hex == "" {
		id := e.ID()
		e.hex = id.String()
	}
	return e.hex
}

// Marshal returns the binary encoding of the Event: the fixed-size header
// fields followed by the length-prefixed content. This is both the persisted
// layout and the wire payload.
func (e *Event) Marshal() ([]byte, error) {
	if len(e.Content) > int(^uint32(0)) {
		return nil, fmt.Errorf("content too large: %d bytes", len(e.Content))
	}

	buf := make([]byte, 0, headerLength+4+len(e.Content))
	buf = e.Header.appendBytes(buf)

	var scratch [4]byte
	binary.BigEndian.PutUint32(scratch[:], uint32(len(e.Content)))
	buf = append(buf, scratch[:]...)
	buf = append(buf, e.Content...)

	return buf, nil
}

// Unmarshal decodes an Event from its binary encoding.
func (e *Event) Unmarshal(data []byte) error {
	if len(data) < headerLength+4 {
		return fmt.Errorf("event too short: %d bytes", len(data))
	}

	e.Header.Timestamp = binary.BigEndian.Uint64(data[:8])
	offset := 8
	for i := 0; i < NumEventParents; i++ {
		copy(e.Header.Parents[i][:], data[offset:offset+IDLength])
		offset += IDLength
	}
	e.Header.Layer = binary.BigEndian.Uint64(data[offset : offset+8])
	offset += 8

	contentLen := int(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4
	if len(data) != offset+contentLen {
		return fmt.Errorf("event content length mismatch: have %d, want %d",
			len(data)-offset, contentLen)
	}
	e.Content = append([]byte{}, data[offset:]...)

	e.id = nil
	e.hex = ""

	return nil
}

// ValidateNew is a cheap pre-filter for freshly received events, usable before
// engaging the store. It checks the structural rules that do not require
// parent lookups: non-empty content, at least one non-null parent, no
// duplicate parents, and the timestamp drift bounds.
func (e *Event) ValidateNew(genesisTimestamp uint64, rotation time.Duration) error {
	if len(e.Content) == 0 {
		return NewEventError(EmptyContent, e.Hex())
	}

	parents := e.Header.ParentIDs()
	if len(parents) == 0 {
		return NewEventError(NoParents, e.Hex())
	}

	seen := map[EventID]struct{}{}
	for _, p := range parents {
		if _, ok := seen[p]; ok {
			return NewEventError(DuplicateParent, e.Hex())
		}
		seen[p] = struct{}{}
	}

	return e.validateTimestamp(genesisTimestamp, rotation)
}

// Validate performs the full structural, temporal, and acyclicity check of an
// Event. Parent lookups go through src, which is either the graph itself or a
// batch overlay, so that events within the same insertion batch can reference
// each other before they are durable.
func (e *Event) Validate(src lookup, genesisTimestamp uint64, rotation time.Duration) error {
	if err := e.ValidateNew(genesisTimestamp, rotation); err != nil {
		return err
	}

	for _, p := range e.Header.ParentIDs() {
		parent, err := src.getEvent(p)
		if err != nil {
			if common.IsStore(err, common.KeyNotFound) {
				return NewEventError(UnknownParent, e.Hex())
			}
			return err
		}
		if parent.Header.Layer >= e.Header.Layer {
			return NewEventError(LayerOrder, e.Hex())
		}
	}

	return nil
}

func (e *Event) validateTimestamp(genesisTimestamp uint64, rotation time.Duration) error {
	drift := uint64(MaxTimestampDrift / time.Millisecond)

	lower := uint64(0)
	if genesisTimestamp > drift {
		lower = genesisTimestamp - drift
	}
	if e.Header.Timestamp < lower {
		return NewEventError(TooOld, e.Hex())
	}

	upper := NowMillis() + drift
	if rotation > 0 {
		upper = genesisTimestamp + uint64(rotation/time.Millisecond) + drift
	}
	if e.Header.Timestamp > upper {
		return NewEventError(TooNew, e.Hex())
	}

	return nil
}

// Equals compares the exported fields of two Events.
func (e *Event) Equals(other *Event) bool {
	return e.Header == other.Header && bytes.Equal(e.Content, other.Content)
}

// NowMillis returns the current wall-clock time in milliseconds since epoch.
func NowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}
