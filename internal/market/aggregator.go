package market

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// aggMailboxSize bounds an aggregator mailbox under tick bursts.
const aggMailboxSize = 1024

type aggMsg interface{}

type aggTick struct{ tick Tick }

type aggSubscribe struct{ spec BarSpecification }

type aggUnsubscribe struct{ spec BarSpecification }

type aggCloseBar struct {
	spec      BarSpecification
	scheduled time.Time
}

type aggMarketClosed struct{}

// Aggregator owns the set of active bar specifications of one symbol,
// routes ticks into the correct builders and emits closed bars.
// All state is owned by the Run goroutine, inbound operations are
// delivered as mailbox messages and processed one at a time.
type Aggregator struct {
	symbol  string
	out     chan<- BarData
	mailbox chan aggMsg

	// A builders entry with a nil value means subscribed but not yet
	// building. Builders created on a tick are staged in pending and only
	// promoted once the fan-out for that tick has completed.
	specs    map[BarSpecification]struct{}
	builders map[BarSpecification]*BarBuilder
	pending  map[BarSpecification]*BarBuilder

	analyzer *SpreadAnalyzer
}

// NewAggregator creates an aggregator for one symbol. Closed bars are
// emitted on out.
func NewAggregator(symbol string, out chan<- BarData) *Aggregator {
	return &Aggregator{
		symbol:   symbol,
		out:      out,
		mailbox:  make(chan aggMsg, aggMailboxSize),
		specs:    make(map[BarSpecification]struct{}),
		builders: make(map[BarSpecification]*BarBuilder),
		pending:  make(map[BarSpecification]*BarBuilder),
		analyzer: NewSpreadAnalyzer(symbol),
	}
}

// Symbol returns the symbol the aggregator owns.
func (a *Aggregator) Symbol() string { return a.symbol }

// Analyzer returns the spread analyzer riding the symbol's tick stream.
func (a *Aggregator) Analyzer() *SpreadAnalyzer { return a.analyzer }

// Run processes mailbox messages until the context is canceled.
func (a *Aggregator) Run(ctx context.Context) error {
	for {
		select {
		case msg := <-a.mailbox:
			a.dispatch(ctx, msg)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SendTick delivers a tick to the aggregator mailbox.
func (a *Aggregator) SendTick(ctx context.Context, t Tick) {
	a.post(ctx, aggTick{tick: t})
}

// Subscribe delivers a subscribe request to the aggregator mailbox.
func (a *Aggregator) Subscribe(ctx context.Context, spec BarSpecification) {
	a.post(ctx, aggSubscribe{spec: spec})
}

// Unsubscribe delivers an unsubscribe request to the aggregator mailbox.
func (a *Aggregator) Unsubscribe(ctx context.Context, spec BarSpecification) {
	a.post(ctx, aggUnsubscribe{spec: spec})
}

// CloseBar delivers a scheduled close-bar trigger to the aggregator mailbox.
func (a *Aggregator) CloseBar(ctx context.Context, spec BarSpecification, scheduled time.Time) {
	a.post(ctx, aggCloseBar{spec: spec, scheduled: scheduled})
}

// MarketClosed delivers a market-closed notification to the aggregator mailbox.
func (a *Aggregator) MarketClosed(ctx context.Context) {
	a.post(ctx, aggMarketClosed{})
}

func (a *Aggregator) post(ctx context.Context, msg aggMsg) {
	select {
	case a.mailbox <- msg:
	case <-ctx.Done():
	}
}

func (a *Aggregator) dispatch(ctx context.Context, msg aggMsg) {
	switch m := msg.(type) {
	case aggTick:
		a.onTick(m.tick)
	case aggSubscribe:
		a.subscribe(m.spec)
	case aggUnsubscribe:
		a.unsubscribe(m.spec)
	case aggCloseBar:
		a.onCloseBar(ctx, m.spec, m.scheduled)
	case aggMarketClosed:
		a.onMarketClosed()
	}
}

// onTick routes one tick into every subscribed specification. Builders
// created on this tick are staged and promoted only after the full
// fan-out, so the active map is never mutated while being iterated and a
// just-subscribed specification always gets a builder seeded by exactly
// one tick.
func (a *Aggregator) onTick(t Tick) {
	a.analyzer.Update(t)

	for spec := range a.specs {
		price := quotePrice(t, spec.Side)
		builder := a.builders[spec]
		if builder != nil {
			builder.Update(price)
			continue
		}
		if staged := a.pending[spec]; staged != nil {
			staged.Update(price)
			continue
		}
		nb := NewBarBuilder(price)
		nb.Update(price)
		a.pending[spec] = nb
	}

	for spec, builder := range a.pending {
		a.builders[spec] = builder
		delete(a.pending, spec)
	}
}

// onCloseBar closes the active bar of a specification at the scheduled
// close time and reopens a fresh builder at the closed bar's close price,
// so consecutive bars have no gap.
func (a *Aggregator) onCloseBar(ctx context.Context, spec BarSpecification, scheduled time.Time) {
	builder := a.builders[spec]
	if builder == nil {
		log.Warn().Str("symbol", a.symbol).Str("spec", spec.String()).Msg("close-bar trigger with no active builder, nothing to close")
		return
	}

	bar := builder.Build(scheduled)
	data := BarData{BarType: BarType{Symbol: a.symbol, Spec: spec}, Bar: bar}
	select {
	case a.out <- data:
	case <-ctx.Done():
		return
	}

	a.builders[spec] = NewBarBuilder(bar.Close)
	a.analyzer.OnIntervalClose(scheduled)
}

func (a *Aggregator) subscribe(spec BarSpecification) {
	if _, ok := a.specs[spec]; ok {
		log.Warn().Str("symbol", a.symbol).Str("spec", spec.String()).Msg("already subscribed, ignoring")
		return
	}
	a.specs[spec] = struct{}{}
	if _, ok := a.builders[spec]; !ok {
		a.builders[spec] = nil
	}
	log.Info().Str("symbol", a.symbol).Str("spec", spec.String()).Msg("specification subscribed")
}

func (a *Aggregator) unsubscribe(spec BarSpecification) {
	if _, ok := a.specs[spec]; !ok {
		log.Warn().Str("symbol", a.symbol).Str("spec", spec.String()).Msg("not subscribed, ignoring")
		return
	}
	delete(a.specs, spec)
	delete(a.builders, spec)
	delete(a.pending, spec)
	log.Info().Str("symbol", a.symbol).Str("spec", spec.String()).Msg("specification unsubscribed")
}

// onMarketClosed purges every active builder back to not-yet-building.
// Accumulating through a closed session would carry a stale price into the
// next session's open.
func (a *Aggregator) onMarketClosed() {
	for spec := range a.builders {
		a.builders[spec] = nil
	}
	for spec := range a.pending {
		delete(a.pending, spec)
	}
	log.Info().Str("symbol", a.symbol).Msg("market closed, builders purged")
}

// quotePrice selects the comparison price of a tick for a price side.
// An unrecognized side is a programming error.
func quotePrice(t Tick, side PriceSide) float64 {
	switch side {
	case SideBid:
		return t.Bid
	case SideAsk:
		return t.Ask
	case SideMid:
		return t.Mid()
	}
	panic("unknown price side: " + side.String())
}
