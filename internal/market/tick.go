package market

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// PriceSide selects which side of the quote feeds an aggregation stream.
type PriceSide int

// Quote price sides.
const (
	SideBid PriceSide = iota + 1
	SideAsk
	SideMid
)

// String returns the lower-cased name of the price side.
func (s PriceSide) String() string {
	switch s {
	case SideBid:
		return "bid"
	case SideAsk:
		return "ask"
	case SideMid:
		return "mid"
	}
	return fmt.Sprintf("PriceSide(%d)", int(s))
}

// ParsePriceSide parses a price side from its config file name.
func ParsePriceSide(s string) (PriceSide, error) {
	switch strings.ToLower(s) {
	case "bid":
		return SideBid, nil
	case "ask":
		return SideAsk, nil
	case "mid":
		return SideMid, nil
	}
	return 0, errors.New("unknown price side: " + s)
}

// Resolution is the time unit of a bar specification.
type Resolution int

// Bar resolutions.
const (
	Second Resolution = iota + 1
	Minute
	Hour
	Day
)

// String returns the lower-cased name of the resolution.
func (r Resolution) String() string {
	switch r {
	case Second:
		return "second"
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case Day:
		return "day"
	}
	return fmt.Sprintf("Resolution(%d)", int(r))
}

// Duration returns the length of one resolution unit.
func (r Resolution) Duration() time.Duration {
	switch r {
	case Second:
		return time.Second
	case Minute:
		return time.Minute
	case Hour:
		return time.Hour
	case Day:
		return 24 * time.Hour
	}
	panic("unknown resolution: " + r.String())
}

// ParseResolution parses a resolution from its config file name.
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(s) {
	case "second":
		return Second, nil
	case "minute":
		return Minute, nil
	case "hour":
		return Hour, nil
	case "day":
		return Day, nil
	}
	return 0, errors.New("unknown resolution: " + s)
}

// Tick represents a single bid / ask quote update for a symbol.
// Precision is the fixed decimal precision of the instrument's prices.
type Tick struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Precision int
	Timestamp time.Time
}

// Mid returns the mid price of the quote, rounded at one extra decimal
// over the instrument precision.
func (t Tick) Mid() float64 {
	return RoundTo((t.Bid+t.Ask)/2, t.Precision+1)
}

// BarSpecification defines a requested aggregation window:
// period count, resolution and quote price side.
type BarSpecification struct {
	Period     int
	Resolution Resolution
	Side       PriceSide
}

// Interval returns the length of one bar window of the specification.
func (s BarSpecification) Interval() time.Duration {
	return time.Duration(s.Period) * s.Resolution.Duration()
}

// String returns the lower-cased form of the specification, e.g. 1-minute-bid.
func (s BarSpecification) String() string {
	return fmt.Sprintf("%d-%v-%v", s.Period, s.Resolution, s.Side)
}

// BarType uniquely identifies one aggregation stream: symbol plus specification.
type BarType struct {
	Symbol string
	Spec   BarSpecification
}

// String returns the lower-cased form of the bar type, e.g. eurusd-1-minute-bid.
func (bt BarType) String() string {
	return strings.ToLower(bt.Symbol) + "-" + bt.Spec.String()
}

// Bar is an immutable, closed OHLCV record.
// Volume is a tick count proxy. Timestamp is the scheduled close time.
type Bar struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	Timestamp time.Time
}

// BarData is a closed-bar event forwarded downstream.
type BarData struct {
	BarType BarType
	Bar     Bar
}

// RoundTo rounds a price to the given number of decimal places.
func RoundTo(price float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(price*p) / p
}
