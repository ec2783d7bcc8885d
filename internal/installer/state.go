package installer

// State is the engine's position in the install lifecycle. There is one
// authoritative current-state value per engine, and failure handling
// dispatches on it.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateDownloading
	StateVerifying
	StateBackingUp
	StateSwapping
	StateRecording
	StateDone
	StateFailed
)

// String returns the state name for logs and error messages.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateDownloading:
		return "downloading"
	case StateVerifying:
		return "verifying"
	case StateBackingUp:
		return "backing-up"
	case StateSwapping:
		return "swapping"
	case StateRecording:
		return "recording"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Mutating reports whether the install tree may have been touched once
// this state was entered. Failures in a mutating state with a fresh
// backup are recoverable via rollback; failures before that leave the
// existing install untouched.
func (s State) Mutating() bool {
	switch s {
	case StateBackingUp, StateSwapping, StateRecording:
		return true
	default:
		return false
	}
}
