package installer

import (
	"errors"
	"fmt"
)

// ErrVersionNotFound is returned when an explicit version identifier is
// not present in the fetched index.
var ErrVersionNotFound = errors.New("version not found in index")

// ErrNoArtifact is returned when the resolved release has no artifact
// for the host platform.
var ErrNoArtifact = errors.New("no artifact for this platform")

// StateError wraps a failure with the lifecycle state it occurred in.
// BackupCreated distinguishes the two recoverable failure shapes: when
// true, a fresh backup exists and rollback is available; when false,
// the previous install was never touched.
type StateError struct {
	State         State
	BackupCreated bool
	Err           error
}

func (e *StateError) Error() string {
	msg := fmt.Sprintf("update failed while %s: %v", e.State, e.Err)
	if e.BackupCreated {
		msg += "; a backup was created, run 'moonup rollback' to restore it"
	}
	return msg
}

func (e *StateError) Unwrap() error {
	return e.Err
}
