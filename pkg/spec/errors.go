package spec

import "fmt"

// SpecError reports malformed or ambiguous input. Construction stops at the
// first offending entry, nothing is partially applied.
type SpecError struct {
	Entry  string
	Reason string
}

func (e *SpecError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("invalid build spec: %s", e.Reason)
	}
	return fmt.Sprintf("invalid build spec entry %s: %s", e.Entry, e.Reason)
}

// ConflictError reports two model entries resolving to the same in-container
// destination. Raised when the second entry is added, never later.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("model destination %s declared twice", e.Path)
}

// StateError reports an operation invoked outside the linear
// populate → materialize → render → save lifecycle.
type StateError struct {
	Op    string
	State string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s in state %s", e.Op, e.State)
}

// IOError wraps a filesystem failure with the offending path.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
