package market

import (
	"context"
	"testing"
	"time"
)

var (
	minuteBid = BarSpecification{Period: 1, Resolution: Minute, Side: SideBid}
	minuteAsk = BarSpecification{Period: 1, Resolution: Minute, Side: SideAsk}
	minuteMid = BarSpecification{Period: 1, Resolution: Minute, Side: SideMid}
)

func aggTestTick(bid, ask float64, sec int) Tick {
	return Tick{
		Symbol:    "EURUSD",
		Bid:       bid,
		Ask:       ask,
		Precision: 5,
		Timestamp: time.Date(2021, 3, 1, 12, 0, sec, 0, time.UTC),
	}
}

func newTestAggregator(t *testing.T) (*Aggregator, chan BarData) {
	t.Helper()
	out := make(chan BarData, 16)
	return NewAggregator("EURUSD", out), out
}

func TestAggregatorSubscribeIdempotent(t *testing.T) {
	a, _ := newTestAggregator(t)
	a.subscribe(minuteBid)
	a.subscribe(minuteBid)

	if len(a.specs) != 1 {
		t.Errorf("subscription count = %v, want 1", len(a.specs))
	}
	if builder, ok := a.builders[minuteBid]; !ok || builder != nil {
		t.Errorf("fresh subscription should have a not-yet-building entry")
	}
}

func TestAggregatorUnsubscribeIdempotent(t *testing.T) {
	a, _ := newTestAggregator(t)
	a.unsubscribe(minuteBid)

	a.subscribe(minuteBid)
	a.unsubscribe(minuteBid)
	if len(a.specs) != 0 {
		t.Errorf("subscription count = %v, want 0", len(a.specs))
	}
	if _, ok := a.builders[minuteBid]; ok {
		t.Errorf("unsubscribe should drop the builder entry")
	}
}

func TestAggregatorPendingPromotion(t *testing.T) {
	a, _ := newTestAggregator(t)
	a.subscribe(minuteBid)

	a.onTick(aggTestTick(1.1000, 1.1002, 0))
	a.onTick(aggTestTick(1.1010, 1.1012, 1))

	builder := a.builders[minuteBid]
	if builder == nil {
		t.Fatal("builder should be active after the first tick")
	}
	if len(a.pending) != 0 {
		t.Errorf("pending map should be empty after promotion")
	}
	bar := builder.Build(time.Now().UTC())
	if bar.Open != 1.1000 {
		t.Errorf("open = %v, want the first tick's price 1.1000", bar.Open)
	}
	if bar.Close != 1.1010 {
		t.Errorf("close = %v, want the last tick's price 1.1010", bar.Close)
	}
	if bar.Volume != 2 {
		t.Errorf("volume = %v, want 2", bar.Volume)
	}
}

func TestAggregatorPriceSideSelection(t *testing.T) {
	a, _ := newTestAggregator(t)
	a.subscribe(minuteBid)
	a.subscribe(minuteAsk)
	a.subscribe(minuteMid)

	a.onTick(aggTestTick(0.80000, 0.80010, 0))

	if open := a.builders[minuteBid].Build(time.Now()).Open; open != 0.80000 {
		t.Errorf("bid builder open = %v, want 0.80000", open)
	}
	if open := a.builders[minuteAsk].Build(time.Now()).Open; open != 0.80010 {
		t.Errorf("ask builder open = %v, want 0.80010", open)
	}
	if open := a.builders[minuteMid].Build(time.Now()).Open; open != 0.80005 {
		t.Errorf("mid builder open = %v, want 0.80005", open)
	}
}

func TestAggregatorCloseBarEmitsAndReseeds(t *testing.T) {
	a, out := newTestAggregator(t)
	a.subscribe(minuteBid)
	a.onTick(aggTestTick(1.1000, 1.1002, 0))
	a.onTick(aggTestTick(1.1020, 1.1022, 1))

	scheduled := time.Date(2021, 3, 1, 12, 1, 0, 0, time.UTC)
	a.onCloseBar(context.Background(), minuteBid, scheduled)

	select {
	case data := <-out:
		if data.BarType.Symbol != "EURUSD" || data.BarType.Spec != minuteBid {
			t.Errorf("bar type = %v", data.BarType)
		}
		if data.Bar.Close != 1.1020 {
			t.Errorf("close = %v, want 1.1020", data.Bar.Close)
		}
		if !data.Bar.Timestamp.Equal(scheduled) {
			t.Errorf("timestamp = %v, want the scheduled close time", data.Bar.Timestamp)
		}
	default:
		t.Fatal("no bar emitted")
	}

	// Continuity: the replacement builder opens at the closed bar's close.
	next := a.builders[minuteBid]
	if next == nil {
		t.Fatal("no replacement builder after close")
	}
	if open := next.Build(time.Now()).Open; open != 1.1020 {
		t.Errorf("replacement open = %v, want previous close 1.1020", open)
	}
}

func TestAggregatorCloseBarWithNoData(t *testing.T) {
	a, out := newTestAggregator(t)
	a.subscribe(minuteBid)

	// The close trigger fires before any tick arrived.
	a.onCloseBar(context.Background(), minuteBid, time.Now().UTC())

	select {
	case data := <-out:
		t.Fatalf("unexpected bar emitted: %+v", data)
	default:
	}
	if builder := a.builders[minuteBid]; builder != nil {
		t.Errorf("builder should remain not-yet-building")
	}
}

func TestAggregatorMarketClosePurgesBuilders(t *testing.T) {
	a, _ := newTestAggregator(t)
	a.subscribe(minuteBid)
	a.onTick(aggTestTick(1.1000, 1.1002, 0))

	a.onMarketClosed()
	if builder := a.builders[minuteBid]; builder != nil {
		t.Fatal("builders should be purged on market close")
	}

	// The next tick starts a brand-new builder from its own price,
	// no high / low carried over from before the closure.
	a.onTick(aggTestTick(1.0950, 1.0952, 1))
	bar := a.builders[minuteBid].Build(time.Now())
	if bar.Open != 1.0950 || bar.High != 1.0950 || bar.Low != 1.0950 {
		t.Errorf("post-close bar should start flat at 1.0950, got %+v", bar)
	}
}

func TestAggregatorTickForUnsubscribedSpec(t *testing.T) {
	a, _ := newTestAggregator(t)
	a.onTick(aggTestTick(1.1000, 1.1002, 0))

	if len(a.builders) != 0 || len(a.pending) != 0 {
		t.Errorf("tick without subscriptions should build nothing")
	}
}

func TestQuotePriceUnknownSidePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("unknown price side should panic")
		}
	}()
	quotePrice(aggTestTick(1, 2, 0), PriceSide(99))
}
