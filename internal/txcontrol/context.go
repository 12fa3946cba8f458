package txcontrol

import (
	"context"
	"fmt"
	"strings"

	"txctl/internal/scope"
)

// LocalResource takes part in exactly one transaction and is told its outcome once.
type LocalResource interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionContext is the view of the ambient transaction handed to application code
// and resource providers. Implementations are either an active transaction or a scope
// running without one (Status() == NoTransaction).
type TransactionContext interface {
	// TransactionKey is unique per active transaction and nil without one.
	TransactionKey() any
	Status() Status
	RollbackOnly() (bool, error)
	SetRollbackOnly() error
	ReadOnly() bool
	SupportsLocal() bool
	SupportsXA() bool

	// ScopedValue and PutScopedValue store per-transaction state, such as the one
	// connection a provider hands out for the whole transaction.
	ScopedValue(key any) any
	PutScopedValue(key, value any)

	PreCompletion(job func() error) error
	PostCompletion(job func(Status) error) error
	RegisterLocalResource(resource LocalResource) error
	RegisterXAResource(resource any, name string) error
}

// scopedContext is what the dispatcher installs in a coordination.
type scopedContext interface {
	TransactionContext

	finish(co *scope.Coordination) error
	markRollbackOnly()
	firstFailure() error
}

type LocalResourceSupport int

const (
	LocalResourcesEnabled LocalResourceSupport = iota
	LocalResourcesEnforceSingle
	LocalResourcesDisabled
)

func (s LocalResourceSupport) String() string {
	switch s {
	case LocalResourcesEnabled:
		return "enabled"
	case LocalResourcesEnforceSingle:
		return "enforce_single"
	case LocalResourcesDisabled:
		return "disabled"
	default:
		return fmt.Sprintf("LocalResourceSupport(%d)", int(s))
	}
}

func ParseLocalResourceSupport(v string) (LocalResourceSupport, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "enabled":
		return LocalResourcesEnabled, nil
	case "enforce_single", "enforce-single", "single":
		return LocalResourcesEnforceSingle, nil
	case "disabled":
		return LocalResourcesDisabled, nil
	default:
		return LocalResourcesEnabled, fmt.Errorf("unknown local resource support %q", v)
	}
}
