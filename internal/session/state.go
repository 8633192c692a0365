// Package session provides the playback session state machine: which channel
// is active, serialized channel switches, and debounced numeric entry.
package session

// State represents the current state of the playback session
type State string

// Session state constants
const (
	StateIdle      State = "idle"      // No channel chosen yet
	StateSwitching State = "switching" // Address resolution and sink handoff in progress
	StatePlaying   State = "playing"   // Sink accepted the resolved address
	StateStopped   State = "stopped"   // Explicitly stopped, may switch again
)

// String returns the string representation of the session state
func (s State) String() string {
	return string(s)
}

// IsValid checks if the session state is a known valid value
func (s State) IsValid() bool {
	switch s {
	case StateIdle, StateSwitching, StatePlaying, StateStopped:
		return true
	default:
		return false
	}
}

// CanTransitionTo checks if a transition from current state to newState is valid
func (s State) CanTransitionTo(newState State) bool {
	switch s {
	case StateIdle:
		// From idle, the only way out is the first switch
		return newState == StateSwitching
	case StateSwitching:
		// A new switch supersedes one still in flight; a stop aborts it
		return newState == StatePlaying || newState == StateSwitching || newState == StateStopped
	case StatePlaying:
		return newState == StateSwitching || newState == StateStopped
	case StateStopped:
		return newState == StateSwitching
	default:
		return false
	}
}
