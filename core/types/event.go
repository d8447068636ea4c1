package types

// Event represents a typed event emitted during state transitions.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// EventType returns the event's type tag, satisfying the emitter contract.
func (e *Event) EventType() string {
	if e == nil {
		return ""
	}
	return e.Type
}

// Event returns the payload itself so attribute consumers need no unwrapping.
func (e *Event) Event() *Event { return e }
