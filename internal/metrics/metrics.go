// Package metrics wraps go-metrics with the small surface this service
// needs: named gauges, counters, and timers, plus a helper that scrapes the
// scheduler's read-only Stats/QueueDepth accessors into that registry. It
// never feeds anything back into the scheduler; the scheduler has no
// knowledge that it is being observed.
package metrics

import (
	"fmt"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// Registry is a thin, named-accessor front for a gometrics.Registry.
type Registry struct {
	inner gometrics.Registry
}

// New returns a Registry backed by a fresh go-metrics registry.
func New() *Registry {
	return &Registry{inner: gometrics.NewRegistry()}
}

// Inner exposes the underlying go-metrics registry for reporters (e.g. a
// periodic logger or an exporter) that need to walk every registered metric.
func (r *Registry) Inner() gometrics.Registry {
	return r.inner
}

// Gauge returns (registering if necessary) the int64 gauge named name.
func (r *Registry) Gauge(name string) gometrics.Gauge {
	return r.inner.GetOrRegister(name, gometrics.NewGauge).(gometrics.Gauge)
}

// Counter returns (registering if necessary) the counter named name.
func (r *Registry) Counter(name string) gometrics.Counter {
	return r.inner.GetOrRegister(name, gometrics.NewCounter).(gometrics.Counter)
}

// Timer returns (registering if necessary) the timer named name.
func (r *Registry) Timer(name string) gometrics.Timer {
	return r.inner.GetOrRegister(name, gometrics.NewTimer).(gometrics.Timer)
}

// GroupStats mirrors scheduler.GroupStats's shape so this package does not
// need to import internal/scheduler; the server adapts one to the other at
// the call site, keeping the scheduler ignorant of who is observing it.
type GroupStats struct {
	Name      string
	UsedSlots int
	Slots     int
}

// ScrapeSchedulerState publishes per-group used-slot gauges and the overall
// queue depth from an already-taken snapshot. It is meant to be called on a
// short interval by the server, using scheduler.Scheduler's own Stats and
// QueueDepth accessors adapted into these plain values.
func (r *Registry) ScrapeSchedulerState(groups []GroupStats, queueDepth int) {
	for _, g := range groups {
		r.Gauge(fmt.Sprintf("meshdrop.scheduler.used_slots.%s", g.Name)).Update(int64(g.UsedSlots))
		r.Gauge(fmt.Sprintf("meshdrop.scheduler.slots.%s", g.Name)).Update(int64(g.Slots))
	}
	r.Gauge("meshdrop.scheduler.queue_depth").Update(int64(queueDepth))
}

// TimeAdmission records how long an AwaitStart call took to resolve, from
// the caller's perspective, into the "meshdrop.scheduler.admission_latency"
// timer.
func (r *Registry) TimeAdmission(d time.Duration) {
	r.Timer("meshdrop.scheduler.admission_latency").Update(d)
}
