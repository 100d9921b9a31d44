package scheduler

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Strategy is the per-group ordering discipline. It is a closed enum, not a
// plugin point: encoded as a tagged variant rather than dynamic dispatch.
type Strategy int

const (
	// StrategyFIFO releases ready uploads in enqueue order.
	StrategyFIFO Strategy = iota
	// StrategyRoundRobin releases ready uploads in ready order, which
	// interleaves users fairly as long as they make uniform progress.
	StrategyRoundRobin
)

// String renders the strategy using its canonical spec name.
func (s Strategy) String() string {
	switch s {
	case StrategyFIFO:
		return "FirstInFirstOut"
	case StrategyRoundRobin:
		return "RoundRobin"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses a strategy name case-insensitively. "FIFO" is
// accepted as a shorthand for "FirstInFirstOut".
func ParseStrategy(raw string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "firstinfirstout", "fifo":
		return StrategyFIFO, nil
	case "roundrobin":
		return StrategyRoundRobin, nil
	default:
		return 0, errors.Errorf("scheduler: unknown strategy %q", raw)
	}
}

// GroupSpec is the configuration of a single group, independent of how it
// arrived (YAML file, admin API, test fixture).
type GroupSpec struct {
	Priority int
	Slots    int
	Strategy Strategy
}

// Options is the configuration snapshot the Configurator ingests: the
// global slot count plus the default, leechers, and user-defined groups.
type Options struct {
	GlobalSlots int
	Default     GroupSpec
	Leechers    GroupSpec
	UserDefined map[string]GroupSpec
}

// validate rejects malformed group configuration: unknown strategy,
// negative slot counts, and a priority-0 collision with the privileged
// group.
func (o Options) validate() error {
	if o.GlobalSlots < 0 {
		return errors.Errorf("global slots must be >= 0, got %d", o.GlobalSlots)
	}
	if err := o.Default.validateNamed(DefaultGroup); err != nil {
		return err
	}
	if err := o.Leechers.validateNamed(LeechersGroup); err != nil {
		return err
	}
	for name, spec := range o.UserDefined {
		if name == PrivilegedGroup || name == DefaultGroup || name == LeechersGroup {
			return errors.Errorf("user-defined group %q reuses a reserved name", name)
		}
		if name == "" {
			return errors.New("user-defined group name must not be empty")
		}
		if err := spec.validateNamed(name); err != nil {
			return err
		}
	}
	return nil
}

func (g GroupSpec) validateNamed(name string) error {
	if g.Slots < 0 {
		return errors.Errorf("group %q slots must be >= 0, got %d", name, g.Slots)
	}
	if g.Priority < 0 {
		return errors.Errorf("group %q priority must be >= 0, got %d", name, g.Priority)
	}
	if g.Priority == 0 && name != PrivilegedGroup {
		return errors.Errorf("group %q may not use reserved priority 0", name)
	}
	if g.Strategy != StrategyFIFO && g.Strategy != StrategyRoundRobin {
		return errors.Errorf("group %q has an invalid strategy", name)
	}
	return nil
}

// hashGroups computes a stable digest over the group portion of Options,
// used by Configure's idempotence guard. It deliberately excludes
// GlobalSlots, which the caller compares separately.
func hashGroups(o Options) string {
	var b strings.Builder

	writeSpec := func(name string, g GroupSpec) {
		b.WriteString(name)
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(g.Priority))
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(g.Slots))
		b.WriteByte('|')
		b.WriteString(g.Strategy.String())
		b.WriteByte(';')
	}

	writeSpec(DefaultGroup, o.Default)
	writeSpec(LeechersGroup, o.Leechers)

	names := make([]string, 0, len(o.UserDefined))
	for name := range o.UserDefined {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		writeSpec(name, o.UserDefined[name])
	}

	return b.String()
}
