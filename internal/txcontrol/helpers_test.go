package txcontrol

import (
	"context"
	"sync"
)

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.entries))
	copy(out, j.entries)
	return out
}

type fakeResource struct {
	name        string
	journal     *journal
	commitErr   error
	rollbackErr error
	onCommit    func()
}

func newFakeResource(name string, j *journal) *fakeResource {
	return &fakeResource{name: name, journal: j}
}

func (r *fakeResource) Commit(context.Context) error {
	r.journal.add("commit " + r.name)
	if r.onCommit != nil {
		r.onCommit()
	}
	return r.commitErr
}

func (r *fakeResource) Rollback(context.Context) error {
	r.journal.add("rollback " + r.name)
	return r.rollbackErr
}

// statusRecorder captures every status passed to a post-completion callback.
type statusRecorder struct {
	mu       sync.Mutex
	statuses []Status
}

func (s *statusRecorder) record(status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *statusRecorder) all() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Status, len(s.statuses))
	copy(out, s.statuses)
	return out
}
