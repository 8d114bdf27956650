package types

// Event is a typed record of a committed vault operation. Attribute values
// are already rendered for display.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// EventType returns the event's type tag.
func (e *Event) EventType() string {
	if e == nil {
		return ""
	}
	return e.Type
}

// Attr returns the attribute stored under key, or "".
func (e *Event) Attr(key string) string {
	if e == nil {
		return ""
	}
	return e.Attributes[key]
}
