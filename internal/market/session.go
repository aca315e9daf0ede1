package market

import (
	"time"

	"github.com/novagaze/barforge/internal/config"
)

// SessionCalendar decides whether the market is open for trading at a
// given instant. Pluggable policy, not business logic of the pipeline.
type SessionCalendar interface {
	IsOpen(t time.Time) bool
}

const minutesPerWeek = 7 * 24 * 60

// WeeklySession is a venue-timezone-agnostic weekly session window checked
// in UTC. The market is closed from the close instant up to, but not
// including, the open instant. Default: Saturday 20:00 to Sunday 21:00.
type WeeklySession struct {
	closeMinute int
	openMinute  int
}

// NewWeeklySession creates a weekly session calendar from config.
// A nil config yields the default closed window.
func NewWeeklySession(cfg *config.Session) *WeeklySession {
	if cfg == nil {
		cfg = &config.Session{
			CloseWeekday: config.DefaultSessionCloseWeekday,
			CloseHour:    config.DefaultSessionCloseHour,
			OpenWeekday:  config.DefaultSessionOpenWeekday,
			OpenHour:     config.DefaultSessionOpenHour,
		}
	}
	return &WeeklySession{
		closeMinute: cfg.CloseWeekday*24*60 + cfg.CloseHour*60,
		openMinute:  cfg.OpenWeekday*24*60 + cfg.OpenHour*60,
	}
}

// IsOpen reports whether the instant falls outside the weekly closed window.
func (s *WeeklySession) IsOpen(t time.Time) bool {
	utc := t.UTC()
	minute := int(utc.Weekday())*24*60 + utc.Hour()*60 + utc.Minute()
	if s.closeMinute == s.openMinute {
		return true
	}
	if s.closeMinute < s.openMinute {
		// Closed window does not wrap the week boundary.
		return minute < s.closeMinute || minute >= s.openMinute
	}
	// Closed window wraps over the end of the week.
	return minute >= s.openMinute && minute < s.closeMinute
}
