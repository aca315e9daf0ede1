package market

import (
	"sync"
	"time"
)

// CancelableSchedule is a handle to an armed repeating schedule.
// Cancel guarantees no further firings are enqueued from the handle, but a
// firing already in flight may still be delivered.
type CancelableSchedule interface {
	Cancel()
}

// Scheduler arms repeating, cancelable triggers on a fixed time grid.
// The callback receives the scheduled firing instant, not the wall clock
// instant at which it actually ran.
type Scheduler interface {
	ScheduleRepeating(first time.Time, period time.Duration, fire func(scheduled time.Time)) CancelableSchedule
}

// NextCloseTime returns the first close instant on the specification's
// resolution-aligned grid strictly after now. The grid is anchored at the
// UTC epoch, so day bars close at UTC midnight.
func NextCloseTime(now time.Time, spec BarSpecification) time.Time {
	interval := spec.Interval()
	return now.UTC().Truncate(interval).Add(interval)
}

// TimerScheduler implements Scheduler on runtime timers. Each schedule
// runs its own goroutine which exits on cancellation.
type TimerScheduler struct{}

// NewTimerScheduler creates a timer backed scheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

// ScheduleRepeating arms a schedule firing at first and every period after.
func (s *TimerScheduler) ScheduleRepeating(first time.Time, period time.Duration, fire func(scheduled time.Time)) CancelableSchedule {
	ts := &timerSchedule{stop: make(chan struct{})}
	go ts.run(first, period, fire)
	return ts
}

type timerSchedule struct {
	stop chan struct{}
	once sync.Once
}

func (ts *timerSchedule) run(next time.Time, period time.Duration, fire func(scheduled time.Time)) {
	for {
		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			fire(next)
			next = next.Add(period)
		case <-ts.stop:
			timer.Stop()
			return
		}
	}
}

// Cancel tears the schedule down. Safe to call more than once.
func (ts *timerSchedule) Cancel() {
	ts.once.Do(func() { close(ts.stop) })
}
