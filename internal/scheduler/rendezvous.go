package scheduler

import (
	"time"

	"github.com/pkg/errors"
)

// Enqueue registers a new upload for username/filename and runs the
// admission loop. It cannot fail under normal conditions: duplicate
// filenames for the same user are distinct queue entries, not an error.
func (s *Scheduler) Enqueue(username, filename string) {
	s.mu.Lock()
	s.addUpload(username, filename, time.Now())
	released := s.process()
	s.mu.Unlock()
	resolve(released)
}

// AwaitStart marks the (username, filename) upload ready and returns a
// Future that resolves once the admission loop releases it. It fails with
// ErrNotEnqueued if no matching upload exists, and ErrAlreadyAwaited if
// called a second time for the same upload.
func (s *Scheduler) AwaitStart(username, filename string) (*Future, error) {
	s.mu.Lock()
	u := s.findUpload(username, filename)
	if u == nil {
		s.mu.Unlock()
		return nil, errors.WithStack(ErrNotEnqueued)
	}
	if !u.readyAt.IsZero() {
		s.mu.Unlock()
		return nil, errors.WithStack(ErrAlreadyAwaited)
	}
	u.readyAt = time.Now()
	released := s.process()
	s.mu.Unlock()
	resolve(released)
	return &Future{done: u.done}, nil
}

// Complete removes the (username, filename) upload from the registry,
// returns its slot to the pinned group if that group still exists, and
// runs the admission loop. The transfer engine must call Complete exactly
// once per successful AwaitStart, whether the transfer succeeded, failed,
// or was cancelled.
func (s *Scheduler) Complete(username, filename string) error {
	s.mu.Lock()
	u := s.findUpload(username, filename)
	if u == nil {
		s.mu.Unlock()
		return errors.WithStack(ErrNotEnqueued)
	}
	s.removeUpload(u)
	if u.pinnedGroup != "" {
		if g, ok := s.groups[u.pinnedGroup]; ok && g.usedSlots > 0 {
			g.usedSlots--
		}
	}
	released := s.process()
	s.mu.Unlock()
	resolve(released)
	return nil
}
