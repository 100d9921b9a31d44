package scheduler

import "github.com/pkg/errors"

// Configure ingests a configuration snapshot and rebuilds the group table.
// It is idempotent: if the group portion of opts hashes the same as the
// last-applied configuration and the global slot count is unchanged, it
// returns immediately without touching live accounting. On any validation
// failure it wraps ErrMisconfiguration, logs, and leaves the scheduler in
// its last-good state.
func (s *Scheduler) Configure(opts Options) error {
	if err := opts.validate(); err != nil {
		if s.logger != nil {
			s.logger.Error("rejecting group configuration", "error", err)
		}
		return errors.Wrap(ErrMisconfiguration, err.Error())
	}

	s.mu.Lock()

	h := hashGroups(opts)
	if h == s.lastOptionsHash && opts.GlobalSlots == s.lastGlobalSlots {
		s.mu.Unlock()
		return nil
	}

	oldGroups := s.groups
	carry := func(name string) int {
		if g, ok := oldGroups[name]; ok {
			return g.usedSlots
		}
		return 0
	}

	newGroups := make(map[string]*group, len(opts.UserDefined)+3)
	newGroups[PrivilegedGroup] = &group{
		name:      PrivilegedGroup,
		priority:  0,
		slots:     opts.GlobalSlots,
		strategy:  StrategyFIFO,
		usedSlots: carry(PrivilegedGroup),
	}
	newGroups[DefaultGroup] = &group{
		name:      DefaultGroup,
		priority:  opts.Default.Priority,
		slots:     opts.Default.Slots,
		strategy:  opts.Default.Strategy,
		usedSlots: carry(DefaultGroup),
	}
	newGroups[LeechersGroup] = &group{
		name:      LeechersGroup,
		priority:  opts.Leechers.Priority,
		slots:     opts.Leechers.Slots,
		strategy:  opts.Leechers.Strategy,
		usedSlots: carry(LeechersGroup),
	}
	for name, spec := range opts.UserDefined {
		newGroups[name] = &group{
			name:      name,
			priority:  spec.Priority,
			slots:     spec.Slots,
			strategy:  spec.Strategy,
			usedSlots: carry(name),
		}
	}

	s.groups = newGroups
	s.maxSlots = opts.GlobalSlots
	s.lastOptionsHash = h
	s.lastGlobalSlots = opts.GlobalSlots

	if s.logger != nil {
		s.logger.Info("group configuration applied", "groups", len(newGroups), "global_slots", opts.GlobalSlots)
	}

	released := s.process()
	s.mu.Unlock()
	resolve(released)
	return nil
}
