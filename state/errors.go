package state

import "fmt"

// ContractError is the panic value used when the Tracker is called in a way
// that can only be a bug in the caller, e.g. with an empty channel name or a
// nick change for a user that is not tracked.
type ContractError struct {
	Op     string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("state: %s: %s", e.Op, e.Reason)
}

func violation(op, format string, args ...interface{}) {
	panic(&ContractError{Op: op, Reason: fmt.Sprintf(format, args...)})
}

func requireName(op, what, name string) {
	if name == "" {
		violation(op, "empty %s", what)
	}
}
