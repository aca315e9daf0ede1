package market

import (
	"sync"
	"time"
)

// SpreadPoint is one observed spread value with the instant it was seen.
type SpreadPoint struct {
	Timestamp time.Time
	Value     float64
}

// SpreadAnalyzer tracks bid / ask spread statistics for one symbol:
// current values, all-time extrema, per-interval averages and any
// negative-spread anomalies seen on the feed. Updates come from the
// owning aggregator, snapshots may be read from any goroutine.
type SpreadAnalyzer struct {
	mu          sync.RWMutex
	symbol      string
	precision   int
	initialized bool
	bid         float64
	ask         float64
	spread      float64
	average     float64
	hasAverage  bool
	samples     []float64
	averages    []SpreadPoint
	maxSpread   SpreadPoint
	minSpread   SpreadPoint
	hasExtrema  bool
	negative    []SpreadPoint
}

// NewSpreadAnalyzer creates a spread analyzer for the given symbol.
// Decimal precision is latched from the first tick received.
func NewSpreadAnalyzer(symbol string) *SpreadAnalyzer {
	return &SpreadAnalyzer{symbol: symbol}
}

// Update consumes one tick and refreshes the spread statistics.
func (a *SpreadAnalyzer) Update(t Tick) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.initialized {
		a.precision = t.Precision
		a.initialized = true
	}

	a.bid = t.Bid
	a.ask = t.Ask
	a.spread = t.Ask - t.Bid
	a.samples = append(a.samples, a.spread)

	if a.spread < 0 {
		a.negative = append(a.negative, SpreadPoint{Timestamp: t.Timestamp, Value: a.spread})
	}

	// Strict comparisons, the first seen value wins ties.
	if !a.hasExtrema {
		a.maxSpread = SpreadPoint{Timestamp: t.Timestamp, Value: a.spread}
		a.minSpread = SpreadPoint{Timestamp: t.Timestamp, Value: a.spread}
		a.hasExtrema = true
	} else {
		if a.spread > a.maxSpread.Value {
			a.maxSpread = SpreadPoint{Timestamp: t.Timestamp, Value: a.spread}
		}
		if a.spread < a.minSpread.Value {
			a.minSpread = SpreadPoint{Timestamp: t.Timestamp, Value: a.spread}
		}
	}

	// Until the first interval closes, keep the running average current from
	// the partial sample so readers never observe an undefined zero average.
	if !a.hasAverage {
		a.average = RoundTo(mean(a.samples), a.precision)
	}
}

// OnIntervalClose computes the average spread of the closing interval,
// appends it to the average series and starts a fresh sample window.
func (a *SpreadAnalyzer) OnIntervalClose(timestamp time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	avg := RoundTo(mean(a.samples), a.precision)
	a.average = avg
	a.hasAverage = true
	a.averages = append(a.averages, SpreadPoint{Timestamp: timestamp, Value: avg})
	a.samples = a.samples[:0]
}

// Symbol returns the symbol the analyzer tracks.
func (a *SpreadAnalyzer) Symbol() string { return a.symbol }

// Bid returns the latest bid price seen.
func (a *SpreadAnalyzer) Bid() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bid
}

// Ask returns the latest ask price seen.
func (a *SpreadAnalyzer) Ask() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ask
}

// Spread returns the latest spread seen.
func (a *SpreadAnalyzer) Spread() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.spread
}

// AverageSpread returns the most recent interval average, or the running
// partial average before the first interval has closed.
func (a *SpreadAnalyzer) AverageSpread() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.average
}

// MaxSpread returns the all-time maximum spread and when it was seen.
func (a *SpreadAnalyzer) MaxSpread() SpreadPoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.maxSpread
}

// MinSpread returns the all-time minimum spread and when it was seen.
func (a *SpreadAnalyzer) MinSpread() SpreadPoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.minSpread
}

// Averages returns the full history of interval averages.
func (a *SpreadAnalyzer) Averages() []SpreadPoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]SpreadPoint, len(a.averages))
	copy(out, a.averages)
	return out
}

// NegativeSpreads returns every negative spread observation recorded.
func (a *SpreadAnalyzer) NegativeSpreads() []SpreadPoint {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]SpreadPoint, len(a.negative))
	copy(out, a.negative)
	return out
}

func mean(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s
	}
	n := len(samples)
	if n == 0 {
		n = 1
	}
	return sum / float64(n)
}
