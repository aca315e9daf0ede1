package market

import (
	"math"
	"testing"
	"time"
)

func spreadTick(bid, ask float64, sec int) Tick {
	return Tick{
		Symbol:    "AUDUSD",
		Bid:       bid,
		Ask:       ask,
		Precision: 5,
		Timestamp: time.Date(2021, 3, 1, 10, 0, sec, 0, time.UTC),
	}
}

func TestSpreadAnalyzerCurrentValues(t *testing.T) {
	a := NewSpreadAnalyzer("AUDUSD")
	a.Update(spreadTick(0.76000, 0.76003, 0))

	if a.Bid() != 0.76000 {
		t.Errorf("bid = %v, want 0.76000", a.Bid())
	}
	if a.Ask() != 0.76003 {
		t.Errorf("ask = %v, want 0.76003", a.Ask())
	}
	if math.Abs(a.Spread()-0.00003) > 1e-12 {
		t.Errorf("spread = %v, want 0.00003", a.Spread())
	}
}

func TestSpreadAnalyzerRunningAverageBeforeFirstInterval(t *testing.T) {
	a := NewSpreadAnalyzer("AUDUSD")
	a.Update(spreadTick(0.76000, 0.76002, 0))

	// Before any interval closes the average comes from the partial sample,
	// never an undefined zero.
	if math.Abs(a.AverageSpread()-0.00002) > 1e-12 {
		t.Errorf("running average = %v, want 0.00002", a.AverageSpread())
	}
}

func TestSpreadAnalyzerIntervalAverage(t *testing.T) {
	a := NewSpreadAnalyzer("AUDUSD")
	a.Update(spreadTick(0.76000, 0.76002, 0))
	a.Update(spreadTick(0.76000, 0.76006, 1))

	closeTime := time.Date(2021, 3, 1, 10, 1, 0, 0, time.UTC)
	a.OnIntervalClose(closeTime)

	if math.Abs(a.AverageSpread()-0.00004) > 1e-12 {
		t.Errorf("interval average = %v, want 0.00004", a.AverageSpread())
	}
	averages := a.Averages()
	if len(averages) != 1 {
		t.Fatalf("averages count = %v, want 1", len(averages))
	}
	if !averages[0].Timestamp.Equal(closeTime) {
		t.Errorf("average timestamp = %v, want %v", averages[0].Timestamp, closeTime)
	}

	// Sample window starts fresh: the next interval only sees new ticks.
	a.Update(spreadTick(0.76000, 0.76010, 61))
	a.OnIntervalClose(closeTime.Add(time.Minute))
	if math.Abs(a.AverageSpread()-0.00010) > 1e-12 {
		t.Errorf("second interval average = %v, want 0.00010", a.AverageSpread())
	}
}

func TestSpreadAnalyzerExtremaFirstSeenWinsTies(t *testing.T) {
	a := NewSpreadAnalyzer("AUDUSD")
	a.Update(spreadTick(0.76000, 0.76004, 0))
	a.Update(spreadTick(0.76000, 0.76004, 1))
	a.Update(spreadTick(0.76000, 0.76002, 2))

	max := a.MaxSpread()
	if max.Timestamp.Second() != 0 {
		t.Errorf("max spread timestamp = %v, first seen should win the tie", max.Timestamp)
	}
	min := a.MinSpread()
	if min.Timestamp.Second() != 2 {
		t.Errorf("min spread timestamp = %v, want the strictly lower value", min.Timestamp)
	}
}

func TestSpreadAnalyzerNegativeSpreadLog(t *testing.T) {
	a := NewSpreadAnalyzer("AUDUSD")
	a.Update(spreadTick(0.76000, 0.76002, 0))
	a.Update(spreadTick(0.76005, 0.76002, 1))

	negative := a.NegativeSpreads()
	if len(negative) != 1 {
		t.Fatalf("negative spread count = %v, want 1", len(negative))
	}
	if negative[0].Value >= 0 {
		t.Errorf("logged spread = %v, want negative", negative[0].Value)
	}
	if negative[0].Timestamp.Second() != 1 {
		t.Errorf("logged timestamp = %v, want the crossed quote", negative[0].Timestamp)
	}
}

func TestSpreadAnalyzerEmptyInterval(t *testing.T) {
	a := NewSpreadAnalyzer("AUDUSD")
	a.Update(spreadTick(0.76000, 0.76002, 0))
	a.OnIntervalClose(time.Date(2021, 3, 1, 10, 1, 0, 0, time.UTC))

	// No ticks in the next interval: average divides by max(count, 1).
	a.OnIntervalClose(time.Date(2021, 3, 1, 10, 2, 0, 0, time.UTC))
	if a.AverageSpread() != 0 {
		t.Errorf("empty interval average = %v, want 0", a.AverageSpread())
	}
	if len(a.Averages()) != 2 {
		t.Errorf("averages count = %v, want 2", len(a.Averages()))
	}
}
