package scheduler

import (
	"sort"
	"time"
)

// readyBucket collects the ready, not-yet-started uploads that currently
// resolve to a given group, plus a reference to that group for capacity and
// strategy lookups.
type readyBucket struct {
	group   *group
	uploads []*upload
}

// process runs the Admission Loop and releases at most one upload. It must
// be called with s.mu held; the returned upload's completion future must be
// resolved by the caller after the mutex is released.
func (s *Scheduler) process() *upload {
	used := 0
	for _, g := range s.groups {
		used += g.usedSlots
	}
	if used >= s.maxSlots {
		return nil
	}

	buckets := make(map[string]*readyBucket)
	for username, list := range s.byUser {
		groupName, ok := s.users.GroupOf(username)
		if !ok {
			continue
		}
		g, ok := s.groups[groupName]
		if !ok {
			continue
		}
		for _, u := range list {
			if u.readyAt.IsZero() || !u.startedAt.IsZero() {
				continue
			}
			b := buckets[groupName]
			if b == nil {
				b = &readyBucket{group: g}
				buckets[groupName] = b
			}
			b.uploads = append(b.uploads, u)
		}
	}
	if len(buckets) == 0 {
		return nil
	}

	names := make([]string, 0, len(buckets))
	for name := range buckets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		gi, gj := buckets[names[i]].group, buckets[names[j]].group
		if gi.priority != gj.priority {
			return gi.priority < gj.priority
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		b := buckets[name]
		g := b.group
		if g.usedSlots >= g.slots || len(b.uploads) == 0 {
			continue
		}

		winner := pickWinner(g.strategy, b.uploads)
		winner.startedAt = time.Now()
		winner.pinnedGroup = g.name
		g.usedSlots++
		if s.logger != nil {
			s.logger.Info("upload released",
				"username", winner.username,
				"filename", winner.filename,
				"group", g.name,
			)
		}
		return winner
	}
	return nil
}

// pickWinner selects the bucket element the strategy prefers. FIFO prefers
// smallest enqueued_at; RoundRobin prefers smallest ready_at. Ties are
// broken deterministically by (username, filename) so that selection never
// depends on map iteration order.
func pickWinner(strategy Strategy, uploads []*upload) *upload {
	best := uploads[0]
	for _, u := range uploads[1:] {
		if better(strategy, u, best) {
			best = u
		}
	}
	return best
}

func better(strategy Strategy, a, b *upload) bool {
	var at, bt time.Time
	switch strategy {
	case StrategyRoundRobin:
		at, bt = a.readyAt, b.readyAt
	default:
		at, bt = a.enqueuedAt, b.enqueuedAt
	}
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	if a.username != b.username {
		return a.username < b.username
	}
	return a.filename < b.filename
}
