package events

// Event is a state change produced by a vault operation.
type Event interface {
	EventType() string
}

// Emitter receives events once the operation producing them has committed.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards every event.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}
