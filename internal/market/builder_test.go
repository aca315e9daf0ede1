package market

import (
	"math"
	"testing"
	"time"
)

func TestBarBuilderAccumulates(t *testing.T) {
	b := NewBarBuilder(1.2000)
	for _, price := range []float64{1.2005, 1.1990, 1.2010, 1.2002} {
		b.Update(price)
	}
	closeTime := time.Date(2021, 3, 1, 12, 1, 0, 0, time.UTC)
	bar := b.Build(closeTime)

	if bar.Open != 1.2000 {
		t.Errorf("open = %v, want 1.2000", bar.Open)
	}
	if bar.High != 1.2010 {
		t.Errorf("high = %v, want 1.2010", bar.High)
	}
	if bar.Low != 1.1990 {
		t.Errorf("low = %v, want 1.1990", bar.Low)
	}
	if bar.Close != 1.2002 {
		t.Errorf("close = %v, want 1.2002", bar.Close)
	}
	if bar.Volume != 4 {
		t.Errorf("volume = %v, want 4", bar.Volume)
	}
	if !bar.Timestamp.Equal(closeTime) {
		t.Errorf("timestamp = %v, want %v", bar.Timestamp, closeTime)
	}
}

func TestBarBuilderInvariants(t *testing.T) {
	b := NewBarBuilder(0.7500)
	updates := []float64{0.7493, 0.7511, 0.7499, 0.7520, 0.7488}
	for _, price := range updates {
		b.Update(price)
	}
	bar := b.Build(time.Now().UTC())

	if bar.Open != 0.7500 {
		t.Errorf("open changed after updates: %v", bar.Open)
	}
	if bar.High < bar.Open || bar.High < bar.Close || bar.High < bar.Low {
		t.Errorf("high %v is not the maximum of the bar", bar.High)
	}
	if bar.Low > bar.Open || bar.Low > bar.Close || bar.Low > bar.High {
		t.Errorf("low %v is not the minimum of the bar", bar.Low)
	}
}

func TestBarBuilderNoUpdates(t *testing.T) {
	b := NewBarBuilder(1.1000)
	bar := b.Build(time.Now().UTC())

	if bar.Open != 1.1000 || bar.High != 1.1000 || bar.Low != 1.1000 || bar.Close != 1.1000 {
		t.Errorf("empty bar should be flat at the open price, got %+v", bar)
	}
	if bar.Volume != 0 {
		t.Errorf("volume = %v, want 0", bar.Volume)
	}
}

func TestBarBuilderBuildDoesNotMutate(t *testing.T) {
	b := NewBarBuilder(1.0)
	b.Update(2.0)
	first := b.Build(time.Now().UTC())
	second := b.Build(time.Now().UTC())

	if first.High != second.High || first.Volume != second.Volume {
		t.Errorf("build mutated the builder: %+v vs %+v", first, second)
	}
}

func TestMidPriceRounding(t *testing.T) {
	tick := Tick{Symbol: "EURGBP", Bid: 0.80000, Ask: 0.80010, Precision: 5}
	mid := tick.Mid()
	if math.Abs(mid-0.800050) > 1e-9 {
		t.Errorf("mid = %v, want 0.800050", mid)
	}
}
