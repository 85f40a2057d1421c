package sse

import "encoding/json"

// Event types.
const (
	// EventConnected is the first event on every stream.
	EventConnected = "connected"
	// EventPass carries the meta-state of a pass that completed, failed,
	// paused or was cancelled.
	EventPass = "pass"
	// EventGraph announces a newly loaded document.
	EventGraph = "graph"
	// EventBreakpoints carries the full breakpoint set after a change.
	EventBreakpoints = "breakpoints"
	// EventStore carries the store snapshot after a change made through
	// the API.
	EventStore = "store"
)

// Event is one encoded server-sent event.
type Event struct {
	Type string
	Data []byte
}

// NewEvent encodes v as the data of an event of type typ.
func NewEvent(typ string, v any) (Event, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: typ, Data: data}, nil
}

// MustEvent is NewEvent for values known to encode.
func MustEvent(typ string, v any) Event {
	e, err := NewEvent(typ, v)
	if err != nil {
		panic(err)
	}
	return e
}
