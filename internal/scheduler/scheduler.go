// Package scheduler implements the upload admission and dispatch core for
// meshdrop's file-sharing server. It decides which of many pending uploads
// may begin transferring bytes, under a policy that partitions peers into
// priority groups, enforces a global concurrency cap, enforces per-group
// concurrency caps, and applies a per-group ordering strategy.
//
// The scheduler owns no sockets and streams no bytes itself; it is a
// rendezvous point between producers (Enqueue) and a transfer engine
// (AwaitStart / Complete).
package scheduler

import (
	"log/slog"
	"sync"
	"time"
)

// Reserved group names. Priority 0 belongs exclusively to the privileged
// group; a config that assigns priority 0 to any other group is rejected.
const (
	PrivilegedGroup = "privileged"
	DefaultGroup    = "default"
	LeechersGroup   = "leechers"
)

// UserService maps a peer username to its current group name. It is
// consulted lazily, at the moment a candidate is considered for release, so
// that reclassifying a user between Enqueue and release takes effect
// without touching already-enqueued state.
type UserService interface {
	// GroupOf returns the group a username currently belongs to. The second
	// return value is false if the user has no assigned group, in which
	// case its ready uploads are skipped by the admission loop until it is
	// assigned one.
	GroupOf(username string) (string, bool)
}

// Scheduler is the Upload Scheduler described by the system design: a
// Registry, an Admission Loop, a Rendezvous surface, a Configurator, and an
// Estimator, all guarded by a single mutex.
type Scheduler struct {
	mu     sync.Mutex
	users  UserService
	logger *slog.Logger

	byUser map[string][]*upload
	groups map[string]*group

	maxSlots        int
	lastOptionsHash string
	lastGlobalSlots int
}

// Option configures a Scheduler at construction time.
type Option func(*Scheduler)

// WithLogger attaches a structured logger used for admission and
// reconfiguration events. Without one, the scheduler logs nothing.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New constructs a Scheduler with no groups and a zero global cap; call
// Configure before any upload can be released.
func New(users UserService, opts ...Option) *Scheduler {
	s := &Scheduler{
		users:  users,
		byUser: make(map[string][]*upload),
		groups: make(map[string]*group),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	return s
}

// discardWriter drops everything written to it, used as the default logger
// sink so the scheduler never panics on a nil logger.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// upload is a pending or active transfer, identified by (username,
// filename). Its zero-value time fields are meaningful: an unset
// ready_at/started_at means "not yet reached that stage".
type upload struct {
	username string
	filename string

	enqueuedAt time.Time
	readyAt    time.Time
	startedAt  time.Time

	pinnedGroup string
	done        chan struct{}
	resolved    bool
}

func newUpload(username, filename string, now time.Time) *upload {
	return &upload{
		username:   username,
		filename:   filename,
		enqueuedAt: now,
		done:       make(chan struct{}),
	}
}

// group is a scheduling class: a priority, a slot budget, and an ordering
// strategy over its ready uploads.
type group struct {
	name      string
	priority  int
	slots     int
	strategy  Strategy
	usedSlots int
}

// resolve signals u's completion future. It is only ever called by the
// admission loop's caller, after the scheduler's mutex has been released
// (see package doc and §5 of the design: resolving under the lock would
// invite lock inversion with a waiter that reacquires it).
func resolve(u *upload) {
	if u == nil {
		return
	}
	if u.resolved {
		return
	}
	u.resolved = true
	close(u.done)
}
