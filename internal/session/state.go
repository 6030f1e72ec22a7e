package session

// State is the session lifecycle state
type State int

const (
	// StateUnknown is the initial state, before the startup probe resolves.
	// Protected content must not be shown while in this state.
	StateUnknown State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "invalid"
	}
}

// Snapshot is a consistent read of the session
type Snapshot struct {
	State   State
	StoreID string
	Loading bool
}

// Authenticated is true iff a store id is set
func (s Snapshot) Authenticated() bool {
	return s.StoreID != ""
}
