package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// TestConcurrentUsersNeverExceedGlobalSlots hammers the scheduler from many
// goroutines and checks the invariant that used slots across all groups
// never exceeds max_slots, and that every enqueued upload eventually
// completes without ever hanging past a generous deadline.
func TestConcurrentUsersNeverExceedGlobalSlots(t *testing.T) {
	const users = 12
	const uploadsPerUser = 8
	const globalSlots = 3

	assignments := make(map[string]string, users)
	for i := 0; i < users; i++ {
		name := fmt.Sprintf("user-%02d", i)
		switch i % 3 {
		case 0:
			assignments[name] = PrivilegedGroup
		case 1:
			assignments[name] = DefaultGroup
		default:
			assignments[name] = LeechersGroup
		}
	}
	dir := newTestDirectory(assignments)
	s := New(dir)
	opts := Options{
		GlobalSlots: globalSlots,
		Default:     GroupSpec{Priority: 1, Slots: 2, Strategy: StrategyFIFO},
		Leechers:    GroupSpec{Priority: 2, Slots: 2, Strategy: StrategyRoundRobin},
	}
	if err := s.Configure(opts); err != nil {
		t.Fatalf("configure: %v", err)
	}

	var maxObserved int
	var mu sync.Mutex
	stop := make(chan struct{})
	var monitor sync.WaitGroup
	monitor.Add(1)
	go func() {
		defer monitor.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			_, groups := s.Stats()
			used := 0
			for _, g := range groups {
				used += g.UsedSlots
			}
			mu.Lock()
			if used > maxObserved {
				maxObserved = used
			}
			mu.Unlock()
			time.Sleep(time.Microsecond)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		username := fmt.Sprintf("user-%02d", i)
		wg.Add(1)
		go func(username string) {
			defer wg.Done()
			for j := 0; j < uploadsPerUser; j++ {
				filename := fmt.Sprintf("file-%d", j)
				s.Enqueue(username, filename)
				future, err := s.AwaitStart(username, filename)
				if err != nil {
					t.Errorf("%s/%s: await: %v", username, filename, err)
					return
				}
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := future.Wait(ctx); err != nil {
					cancel()
					t.Errorf("%s/%s: never released: %v", username, filename, err)
					return
				}
				cancel()
				if err := s.Complete(username, filename); err != nil {
					t.Errorf("%s/%s: complete: %v", username, filename, err)
					return
				}
			}
		}(username)
	}
	wg.Wait()
	close(stop)
	monitor.Wait()

	if maxObserved > globalSlots {
		t.Fatalf("observed %d slots in use, want <= %d", maxObserved, globalSlots)
	}
	if s.QueueDepth() != 0 {
		t.Fatalf("expected empty registry after every upload completed, got depth %d", s.QueueDepth())
	}
}

// TestConcurrentReconfigureDoesNotRace exercises Configure racing against
// Enqueue/AwaitStart/Complete traffic; the race detector is the actual
// assertion here; the result of each future's Wait is not checked.
func TestConcurrentReconfigureDoesNotRace(t *testing.T) {
	dir := newTestDirectory(map[string]string{"alice": DefaultGroup, "bob": LeechersGroup})
	s := New(dir)
	if err := s.Configure(Options{
		GlobalSlots: 1,
		Default:     GroupSpec{Priority: 1, Slots: 1, Strategy: StrategyFIFO},
		Leechers:    GroupSpec{Priority: 2, Slots: 1, Strategy: StrategyFIFO},
	}); err != nil {
		t.Fatalf("initial configure: %v", err)
	}

	var workers sync.WaitGroup
	var reconfigurer sync.WaitGroup
	stop := make(chan struct{})

	reconfigurer.Add(1)
	go func() {
		defer reconfigurer.Done()
		slots := 1
		for {
			select {
			case <-stop:
				return
			default:
			}
			slots = slots%4 + 1
			_ = s.Configure(Options{
				GlobalSlots: slots,
				Default:     GroupSpec{Priority: 1, Slots: slots, Strategy: StrategyFIFO},
				Leechers:    GroupSpec{Priority: 2, Slots: slots, Strategy: StrategyFIFO},
			})
		}
	}()

	for _, username := range []string{"alice", "bob"} {
		workers.Add(1)
		go func(username string) {
			defer workers.Done()
			for i := 0; i < 50; i++ {
				filename := fmt.Sprintf("f-%d", i)
				s.Enqueue(username, filename)
				future, err := s.AwaitStart(username, filename)
				if err != nil {
					continue
				}
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				future.Wait(ctx)
				cancel()
				s.Complete(username, filename)
			}
		}(username)
	}

	workers.Wait()
	close(stop)
	reconfigurer.Wait()
}
