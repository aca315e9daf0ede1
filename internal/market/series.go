package market

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// defaultSeriesCapacity bounds how many closed bars a series keeps.
const defaultSeriesCapacity = 1024

// BarSeries holds the closed-bar history of one aggregation stream and
// exposes lookback accessors to the algorithm layer. Index 0 is the most
// recently closed bar. History is bounded, the oldest bars are dropped.
// Safe for concurrent use.
type BarSeries struct {
	mu      sync.RWMutex
	barType BarType
	max     int
	bars    []Bar
}

// NewBarSeries creates an empty series for the given bar type.
func NewBarSeries(barType BarType) *BarSeries {
	return &BarSeries{barType: barType, max: defaultSeriesCapacity}
}

// BarType returns the stream identity of the series.
func (s *BarSeries) BarType() BarType { return s.barType }

// Add appends a newly closed bar to the series.
func (s *BarSeries) Add(bar Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars = append(s.bars, bar)
	if len(s.bars) > s.max {
		s.bars = s.bars[len(s.bars)-s.max:]
	}
}

// Count returns the number of bars held.
func (s *BarSeries) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars)
}

// Bar returns the bar at the given lookback index, 0 being the latest.
func (s *BarSeries) Bar(index int) (Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.at(index)
}

// Open returns the open price at the given lookback index.
func (s *BarSeries) Open(index int) (float64, error) {
	bar, err := s.Bar(index)
	return bar.Open, err
}

// High returns the high price at the given lookback index.
func (s *BarSeries) High(index int) (float64, error) {
	bar, err := s.Bar(index)
	return bar.High, err
}

// Low returns the low price at the given lookback index.
func (s *BarSeries) Low(index int) (float64, error) {
	bar, err := s.Bar(index)
	return bar.Low, err
}

// Close returns the close price at the given lookback index.
func (s *BarSeries) Close(index int) (float64, error) {
	bar, err := s.Bar(index)
	return bar.Close, err
}

// Timestamp returns the close timestamp at the given lookback index.
func (s *BarSeries) Timestamp(index int) (time.Time, error) {
	bar, err := s.Bar(index)
	return bar.Timestamp, err
}

// HighestHigh returns the highest high over period bars, starting shift
// bars back from the latest.
func (s *BarSeries) HighestHigh(period, shift int) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var highest float64
	for i := shift; i < shift+period; i++ {
		bar, err := s.at(i)
		if err != nil {
			return 0, err
		}
		if i == shift || bar.High > highest {
			highest = bar.High
		}
	}
	return highest, nil
}

// LowestLow returns the lowest low over period bars, starting shift
// bars back from the latest.
func (s *BarSeries) LowestLow(period, shift int) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var lowest float64
	for i := shift; i < shift+period; i++ {
		bar, err := s.at(i)
		if err != nil {
			return 0, err
		}
		if i == shift || bar.Low < lowest {
			lowest = bar.Low
		}
	}
	return lowest, nil
}

func (s *BarSeries) at(index int) (Bar, error) {
	if index < 0 || index >= len(s.bars) {
		return Bar{}, errors.Errorf("bar series %v: lookback index %v out of range, have %v bars", s.barType, index, len(s.bars))
	}
	return s.bars[len(s.bars)-1-index], nil
}
