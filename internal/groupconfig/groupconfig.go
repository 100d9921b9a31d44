// Package groupconfig loads and validates upload scheduler group
// configuration and hands changed snapshots to a callback, insulating the
// scheduler from where its configuration actually lives.
package groupconfig

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	GroupPrivileged = "privileged"
	GroupDefault    = "default"
	GroupLeechers   = "leechers"
)

// Strategy mirrors scheduler.Strategy without importing the scheduler
// package, so this package can be unit-tested and reused independently of
// it; the server wires the two together at startup.
type Strategy string

const (
	StrategyFIFO       Strategy = "FirstInFirstOut"
	StrategyRoundRobin Strategy = "RoundRobin"
)

func (s Strategy) valid() bool {
	return s == StrategyFIFO || s == StrategyRoundRobin
}

// GroupSpec is one group's configuration as it appears in the source file.
type GroupSpec struct {
	Priority int      `yaml:"priority"`
	Slots    int      `yaml:"slots"`
	Strategy Strategy `yaml:"strategy"`
}

// Options is a full configuration snapshot.
type Options struct {
	GlobalSlots int                  `yaml:"global_slots"`
	Default     GroupSpec            `yaml:"default"`
	Leechers    GroupSpec            `yaml:"leechers"`
	UserDefined map[string]GroupSpec `yaml:"groups"`
}

// Validate reports a Misconfiguration-class error if opts cannot be applied:
// negative slot counts, an unknown strategy, a user-defined group reusing a
// reserved name, or a user-defined group claiming priority 0.
func (o Options) Validate() error {
	if o.GlobalSlots < 0 {
		return errors.Errorf("global_slots must be >= 0, got %d", o.GlobalSlots)
	}
	if err := o.Default.validate(GroupDefault); err != nil {
		return err
	}
	if err := o.Leechers.validate(GroupLeechers); err != nil {
		return err
	}
	for name, g := range o.UserDefined {
		if name == "" {
			return errors.New("group name must not be empty")
		}
		if name == GroupPrivileged || name == GroupDefault || name == GroupLeechers {
			return errors.Errorf("group %q reuses a reserved name", name)
		}
		if err := g.validate(name); err != nil {
			return err
		}
	}
	return nil
}

func (g GroupSpec) validate(name string) error {
	if g.Slots < 0 {
		return errors.Errorf("group %q: slots must be >= 0, got %d", name, g.Slots)
	}
	if g.Priority < 0 {
		return errors.Errorf("group %q: priority must be >= 0, got %d", name, g.Priority)
	}
	if g.Priority == 0 {
		return errors.Errorf("group %q: priority 0 is reserved for the privileged group", name)
	}
	if !g.Strategy.valid() {
		return errors.Errorf("group %q: unknown strategy %q", name, g.Strategy)
	}
	return nil
}

// Hash computes a stable digest over the group portion of opts (everything
// except GlobalSlots), used by callers to detect a no-op reload without
// comparing full structs field by field. Not cryptographic; collisions are
// merely a missed reload, never a security boundary.
func Hash(o Options) string {
	var b strings.Builder
	write := func(name string, g GroupSpec) {
		b.WriteString(name)
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(g.Priority))
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(g.Slots))
		b.WriteByte('|')
		b.WriteString(string(g.Strategy))
		b.WriteByte(';')
	}
	write(GroupDefault, o.Default)
	write(GroupLeechers, o.Leechers)

	names := make([]string, 0, len(o.UserDefined))
	for name := range o.UserDefined {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		write(name, o.UserDefined[name])
	}
	return b.String()
}
