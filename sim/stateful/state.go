// Package stateful saves and restores the state of simulation objects.
package stateful

// A State is a JSON-encodable value, usually a pointer to a struct, that
// captures everything an object needs to resume.
type State any

// A StateHolder is an object that has a state.
type StateHolder interface {
	Name() string

	// State returns a snapshot of the current state. The returned value can
	// also be used as the target to decode a saved state into.
	State() State

	// SetState restores a state previously returned by State.
	SetState(State) error
}
