package scope

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is the failure cause recorded when a coordination outlives its timeout.
	ErrTimeout = errors.New("coordination timed out")

	// ErrTerminated is returned when a participant is added to an ended coordination.
	ErrTerminated = errors.New("coordination already terminated")
)

type Kind int

const (
	// KindFailed means the coordination was failed before it ended.
	KindFailed Kind = iota + 1
	// KindPartiallyEnded means at least one participant returned an error from Ended.
	KindPartiallyEnded
	// KindAlreadyEnded means End was called twice.
	KindAlreadyEnded
)

func (k Kind) String() string {
	switch k {
	case KindFailed:
		return "failed"
	case KindPartiallyEnded:
		return "partially ended"
	case KindAlreadyEnded:
		return "already ended"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by End.
type Error struct {
	Kind  Kind
	Name  string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("coordination %q %s: %v", e.Name, e.Kind, e.Cause)
	}
	return fmt.Sprintf("coordination %q %s", e.Name, e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// IsFailed reports whether err is an *Error of KindFailed.
func IsFailed(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == KindFailed
}
