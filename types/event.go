package types

// Event is an application-emitted event. Indexed and Data are
// distinguished by position: every indexed element precedes every
// data element on the wire.
type Event struct {
	Indexed []any
	Data    []any
}

// Signature returns the first indexed element when it is a string,
// which by convention is the event signature (e.g. "Transfer(Address,int)").
func (e Event) Signature() (string, bool) {
	if len(e.Indexed) == 0 {
		return "", false
	}
	s, ok := e.Indexed[0].(string)
	return s, ok
}
