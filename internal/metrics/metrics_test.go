package metrics

import "testing"

func TestGaugeCounterTimerAreRegisteredAndReused(t *testing.T) {
	r := New()
	r.Gauge("g").Update(42)
	if got := r.Gauge("g").Value(); got != 42 {
		t.Fatalf("expected gauge value 42, got %d", got)
	}

	r.Counter("c").Inc(3)
	r.Counter("c").Inc(4)
	if got := r.Counter("c").Count(); got != 7 {
		t.Fatalf("expected counter 7, got %d", got)
	}
}

func TestScrapeSchedulerStatePublishesPerGroupGauges(t *testing.T) {
	r := New()
	r.ScrapeSchedulerState([]GroupStats{
		{Name: "default", UsedSlots: 2, Slots: 4},
		{Name: "leechers", UsedSlots: 0, Slots: 1},
	}, 5)

	if got := r.Gauge("meshdrop.scheduler.used_slots.default").Value(); got != 2 {
		t.Fatalf("expected default used_slots gauge 2, got %d", got)
	}
	if got := r.Gauge("meshdrop.scheduler.slots.leechers").Value(); got != 1 {
		t.Fatalf("expected leechers slots gauge 1, got %d", got)
	}
	if got := r.Gauge("meshdrop.scheduler.queue_depth").Value(); got != 5 {
		t.Fatalf("expected queue_depth gauge 5, got %d", got)
	}
}
