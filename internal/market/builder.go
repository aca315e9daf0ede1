package market

import (
	"time"
)

// BarBuilder accumulates one OHLCV bar from a sequence of prices.
// Open is fixed at construction and never changes afterwards.
type BarBuilder struct {
	open   float64
	high   float64
	low    float64
	close  float64
	volume int64
}

// NewBarBuilder creates a builder opened at the given price.
// The opening price does not count towards volume.
func NewBarBuilder(open float64) *BarBuilder {
	return &BarBuilder{
		open:  open,
		high:  open,
		low:   open,
		close: open,
	}
}

// Update extends the bar with one price and counts it towards volume.
func (b *BarBuilder) Update(price float64) {
	if price > b.high {
		b.high = price
	}
	if price < b.low {
		b.low = price
	}
	b.close = price
	b.volume++
}

// Build returns an immutable bar snapshot of whatever has accumulated,
// closed at the given timestamp. The builder state is not changed.
func (b *BarBuilder) Build(closeTime time.Time) Bar {
	return Bar{
		Open:      b.open,
		High:      b.high,
		Low:       b.low,
		Close:     b.close,
		Volume:    b.volume,
		Timestamp: closeTime,
	}
}
