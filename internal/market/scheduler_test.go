package market

import (
	"sync"
	"testing"
	"time"
)

func TestNextCloseTimeGrid(t *testing.T) {
	now := time.Date(2021, 3, 1, 12, 0, 37, 500000000, time.UTC)

	cases := []struct {
		spec BarSpecification
		want time.Time
	}{
		{BarSpecification{Period: 1, Resolution: Second, Side: SideBid}, time.Date(2021, 3, 1, 12, 0, 38, 0, time.UTC)},
		{BarSpecification{Period: 1, Resolution: Minute, Side: SideBid}, time.Date(2021, 3, 1, 12, 1, 0, 0, time.UTC)},
		{BarSpecification{Period: 5, Resolution: Minute, Side: SideBid}, time.Date(2021, 3, 1, 12, 5, 0, 0, time.UTC)},
		{BarSpecification{Period: 1, Resolution: Hour, Side: SideBid}, time.Date(2021, 3, 1, 13, 0, 0, 0, time.UTC)},
		{BarSpecification{Period: 4, Resolution: Hour, Side: SideBid}, time.Date(2021, 3, 1, 16, 0, 0, 0, time.UTC)},
		{BarSpecification{Period: 1, Resolution: Day, Side: SideBid}, time.Date(2021, 3, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		if got := NextCloseTime(now, c.spec); !got.Equal(c.want) {
			t.Errorf("NextCloseTime(%v, %v) = %v, want %v", now, c.spec, got, c.want)
		}
	}
}

func TestNextCloseTimeOnBoundary(t *testing.T) {
	// Exactly on a boundary the next close is one full interval away.
	now := time.Date(2021, 3, 1, 12, 1, 0, 0, time.UTC)
	spec := BarSpecification{Period: 1, Resolution: Minute, Side: SideBid}
	want := time.Date(2021, 3, 1, 12, 2, 0, 0, time.UTC)
	if got := NextCloseTime(now, spec); !got.Equal(want) {
		t.Errorf("NextCloseTime on boundary = %v, want %v", got, want)
	}
}

func TestTimerSchedulerFiresWithScheduledInstant(t *testing.T) {
	s := NewTimerScheduler()

	var (
		mu    sync.Mutex
		fires []time.Time
	)
	done := make(chan struct{})
	first := time.Now().Add(20 * time.Millisecond)
	period := 30 * time.Millisecond

	schedule := s.ScheduleRepeating(first, period, func(scheduled time.Time) {
		mu.Lock()
		fires = append(fires, scheduled)
		if len(fires) == 3 {
			close(done)
		}
		mu.Unlock()
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("schedule never reached three firings")
	}
	schedule.Cancel()

	mu.Lock()
	got := append([]time.Time(nil), fires[:3]...)
	mu.Unlock()

	// The callback receives the scheduled grid instants, not the wall clock.
	if !got[0].Equal(first) {
		t.Errorf("first firing = %v, want %v", got[0], first)
	}
	for i := 1; i < 3; i++ {
		if want := got[i-1].Add(period); !got[i].Equal(want) {
			t.Errorf("firing %v = %v, want %v", i, got[i], want)
		}
	}
}

func TestTimerSchedulerCancelStopsFiring(t *testing.T) {
	s := NewTimerScheduler()

	var (
		mu    sync.Mutex
		count int
	)
	schedule := s.ScheduleRepeating(time.Now().Add(10*time.Millisecond), 10*time.Millisecond, func(time.Time) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	schedule.Cancel()
	schedule.Cancel() // safe to call twice

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count > 1 {
		t.Errorf("fired %v times after cancel, want at most one in-flight firing", count)
	}
}
