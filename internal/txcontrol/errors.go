package txcontrol

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalState marks usage errors: the operation is not allowed in the
	// current state of the transaction context.
	ErrIllegalState = errors.New("illegal transaction state")

	ErrNoTransaction = fmt.Errorf("%w: no transaction is active", ErrIllegalState)
	ErrNoScope       = fmt.Errorf("%w: there is no applicable transaction context", ErrIllegalState)

	// ErrRolledBack is matched by every *RolledBackError.
	ErrRolledBack = errors.New("transaction rolled back")

	// ErrTransaction is matched by every *Error.
	ErrTransaction = errors.New("transaction error")

	ErrLocalUnsupported = errors.New("local resources are not supported by this transaction")
	ErrSingleLocal      = errors.New("only one local resource may be registered")
	ErrXAUnsupported    = errors.New("XA resources are not supported by the local transaction control")
	ErrRollbackRules    = errors.New("error declared both to trigger and not to trigger rollback")
)

// StateError reports an operation rejected because of the context's state.
type StateError struct {
	Op     string
	Status Status
	Err    error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %v (status %s)", e.Op, e.unwrap(), e.Status)
}

func (e *StateError) Unwrap() error { return e.unwrap() }

func (e *StateError) unwrap() error {
	if e.Err == nil {
		return ErrIllegalState
	}
	return e.Err
}

func stateError(op string, status Status) error {
	return &StateError{Op: op, Status: status}
}

// RolledBackError is returned when a transaction rolled back even though the call
// itself was expected to complete. Cause is the error that forced the rollback and
// stays reachable through errors.Is and errors.As.
type RolledBackError struct {
	Cause error
}

func (e *RolledBackError) Error() string {
	if e.Cause == nil {
		return ErrRolledBack.Error()
	}
	return fmt.Sprintf("%v: %v", ErrRolledBack, e.Cause)
}

func (e *RolledBackError) Is(target error) bool { return target == ErrRolledBack }

func (e *RolledBackError) Unwrap() error { return e.Cause }

// Error reports a transaction failure that is not a rollback: a scope that could not be
// begun, or a completion callback that failed after a commit.
type Error struct {
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
}

func (e *Error) Is(target error) bool { return target == ErrTransaction }

func (e *Error) Unwrap() error { return e.Cause }
