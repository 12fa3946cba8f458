package txcontrol

import "fmt"

// Status is the lifecycle state of a transaction context. The declaration order is
// significant: guards compare against MarkedRollback.
type Status int32

const (
	NoTransaction Status = iota
	Active
	MarkedRollback
	Committing
	Committed
	RollingBack
	RolledBack
)

func (s Status) String() string {
	switch s {
	case NoTransaction:
		return "NO_TRANSACTION"
	case Active:
		return "ACTIVE"
	case MarkedRollback:
		return "MARKED_ROLLBACK"
	case Committing:
		return "COMMITTING"
	case Committed:
		return "COMMITTED"
	case RollingBack:
		return "ROLLING_BACK"
	case RolledBack:
		return "ROLLED_BACK"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s == Committed || s == RolledBack
}
