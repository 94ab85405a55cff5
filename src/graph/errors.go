package graph

import "fmt"

// EventErrorCode identifies which validation rule an invalid event violated.
// The distinction is for diagnostics; callers reject the containing batch
// regardless of the code.
type EventErrorCode uint32

const (
	// EmptyContent - events must carry a non-empty payload.
	EmptyContent EventErrorCode = iota
	// NoParents - a non-genesis event needs at least one non-null parent.
	NoParents
	// DuplicateParent - the same parent ID is listed twice.
	DuplicateParent
	// UnknownParent - a parent is in neither the store nor the batch overlay.
	UnknownParent
	// LayerOrder - a parent's layer is not strictly shallower than the event's.
	LayerOrder
	// TooOld - the timestamp falls before the rotation window.
	TooOld
	// TooNew - the timestamp falls after the rotation window.
	TooNew
)

// EventError is returned when an event fails validation. The whole insertion
// batch containing the event is rejected.
type EventError struct {
	code  EventErrorCode
	event string
}

// NewEventError ...
func NewEventError(code EventErrorCode, event string) EventError {
	return EventError{
		code:  code,
		event: event,
	}
}

// Error implements the error interface.
func (e EventError) Error() string {
	m := ""
	switch e.code {
	case EmptyContent:
		m = "Empty Content"
	case NoParents:
		m = "No Parents"
	case DuplicateParent:
		m = "Duplicate Parent"
	case UnknownParent:
		m = "Unknown Parent"
	case LayerOrder:
		m = "Layer Order"
	case TooOld:
		m = "Timestamp Too Old"
	case TooNew:
		m = "Timestamp Too New"
	}

	return fmt.Sprintf("invalid event %s: %s", e.event, m)
}

// IsEventError checks that an error is of type EventError and that its code
// matches the provided code.
func IsEventError(err error, code EventErrorCode) bool {
	eventErr, ok := err.(EventError)
	return ok && eventErr.code == code
}

// IsAnyEventError checks that an error is a validation rejection of any kind.
func IsAnyEventError(err error) bool {
	_, ok := err.(EventError)
	return ok
}
