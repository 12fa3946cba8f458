package scope

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"txctl/internal/bootstrap/logging"
	"txctl/internal/errs"
)

// Participant is notified once when its coordination terminates.
type Participant interface {
	Ended(c *Coordination) error
	Failed(c *Coordination) error
}

// ParticipantFuncs adapts two functions to Participant. Nil functions are no-ops.
type ParticipantFuncs struct {
	OnEnded  func(c *Coordination) error
	OnFailed func(c *Coordination) error
}

func (p ParticipantFuncs) Ended(c *Coordination) error {
	if p.OnEnded == nil {
		return nil
	}
	return p.OnEnded(c)
}

func (p ParticipantFuncs) Failed(c *Coordination) error {
	if p.OnFailed == nil {
		return nil
	}
	return p.OnFailed(c)
}

type Coordination struct {
	id     uint64
	name   string
	parent *Coordination
	vars   *Variables
	timer  *time.Timer

	mu           sync.Mutex
	participants []Participant
	failure      error
	terminated   bool
	detached     bool
}

func (c *Coordination) ID() uint64 { return c.id }

func (c *Coordination) Name() string { return c.name }

// Parent returns the coordination that was innermost when this one began.
func (c *Coordination) Parent() *Coordination { return c.parent }

func (c *Coordination) Variables() *Variables { return c.vars }

func (c *Coordination) AddParticipant(p Participant) error {
	if p == nil {
		return errors.New("participant is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated {
		return errs.Wrapf(ErrTerminated, "add participant to %q", c.name)
	}
	c.participants = append(c.participants, p)
	return nil
}

// Fail marks the coordination as failed. Only the first cause is kept; it returns false
// when the coordination was already failed or has ended.
func (c *Coordination) Fail(cause error) bool {
	if cause == nil {
		cause = errors.New("coordination failed without cause")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminated || c.failure != nil {
		return false
	}
	c.failure = cause
	return true
}

// FailureCause returns the cause passed to the first successful Fail.
func (c *Coordination) FailureCause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failure
}

func (c *Coordination) Terminated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminated
}

// Detach hides the coordination from Peek. End detaches once every participant has
// been notified; a participant may detach earlier so that the rest of its completion
// work resolves the parent coordination instead.
func (c *Coordination) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detached = true
}

func (c *Coordination) visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.detached
}

// End terminates the coordination and notifies participants in registration order.
// Every participant is notified even when an earlier one returns an error. The
// coordination stays visible to Peek while participants run unless one of them
// detaches it.
func (c *Coordination) End(ctx context.Context) error {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return &Error{Kind: KindAlreadyEnded, Name: c.name}
	}
	c.terminated = true
	failure := c.failure
	participants := c.participants
	c.participants = nil
	c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}

	var first error
	for _, p := range participants {
		var err error
		if failure != nil {
			err = p.Failed(c)
		} else {
			err = p.Ended(c)
		}
		if err == nil {
			continue
		}
		if first == nil {
			first = err
			continue
		}
		logging.Warn(ctx, "coordination participant failed",
			slog.String("coordination", c.name),
			slog.Any("err", errs.Loggable(err)),
		)
	}

	c.Detach()

	if failure != nil {
		return &Error{Kind: KindFailed, Name: c.name, Cause: failure}
	}
	if first != nil {
		return &Error{Kind: KindPartiallyEnded, Name: c.name, Cause: first}
	}
	return nil
}
