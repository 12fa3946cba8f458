package txcontrol

import "fmt"

// Propagation selects how a unit of work relates to the ambient transaction.
type Propagation int

const (
	// Required joins the ambient transaction or starts one.
	Required Propagation = iota + 1
	// RequiresNew always starts an independent transaction.
	RequiresNew
	// Supports joins any ambient scope, with or without a transaction, or starts a
	// scope without one.
	Supports
	// NotSupported joins an ambient scope without a transaction or starts one.
	NotSupported
)

func (p Propagation) String() string {
	switch p {
	case Required:
		return "REQUIRED"
	case RequiresNew:
		return "REQUIRES_NEW"
	case Supports:
		return "SUPPORTS"
	case NotSupported:
		return "NOT_SUPPORTED"
	default:
		return fmt.Sprintf("Propagation(%d)", int(p))
	}
}

func (p Propagation) coordinationName() string {
	return "Resource-Local-Transaction." + p.String()
}
