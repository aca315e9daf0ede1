package market

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	ctrlMailboxSize = 1024
	barBufSize      = 256

	// sessionPollInterval is how often the weekly session predicate is
	// re-evaluated for open / close transitions.
	sessionPollInterval = time.Second
)

// Sink receives closed bars and forwarded ticks for delivery outside the
// pipeline. Sends are fire-and-forget, a sink must not block its caller
// indefinitely.
type Sink interface {
	SendBar(BarData)
	SendTick(Tick)
}

type ctrlMsg interface{}

type ctrlTick struct{ tick Tick }

type ctrlSubscribe struct{ barType BarType }

type ctrlUnsubscribe struct{ barType BarType }

type ctrlCloseBar struct {
	barType   BarType
	scheduled time.Time
}

type ctrlMarketOpened struct{ symbol string }

type ctrlMarketClosed struct{ symbol string }

type ctrlSessionChanged struct{ open bool }

// Controller owns one aggregator per symbol, manages the subscribe /
// unsubscribe lifecycle, arms and disarms the periodic close-bar schedules
// around weekly session boundaries, and fans ticks and closed bars out to
// the downstream sink.
// All mutable state is owned by the command loop goroutine; inbound
// operations are delivered as mailbox messages and processed one at a time.
type Controller struct {
	calendar  SessionCalendar
	scheduler Scheduler
	sink      Sink

	mailbox chan ctrlMsg
	bars    chan BarData

	// A schedules entry with a nil value means subscribed while the
	// market is closed: the record exists but no timer is armed.
	schedules map[BarType]CancelableSchedule

	aggMu       sync.RWMutex
	aggregators map[string]*aggHandle

	seriesMu sync.RWMutex
	series   map[BarType]*BarSeries

	wg sync.WaitGroup
}

type aggHandle struct {
	agg    *Aggregator
	cancel context.CancelFunc
}

// NewController creates a controller wired to the given session calendar,
// scheduler and downstream sink.
func NewController(calendar SessionCalendar, scheduler Scheduler, sink Sink) *Controller {
	return &Controller{
		calendar:    calendar,
		scheduler:   scheduler,
		sink:        sink,
		mailbox:     make(chan ctrlMsg, ctrlMailboxSize),
		bars:        make(chan BarData, barBufSize),
		schedules:   make(map[BarType]CancelableSchedule),
		aggregators: make(map[string]*aggHandle),
		series:      make(map[BarType]*BarSeries),
	}
}

// Run processes controller messages until the context is canceled.
func (c *Controller) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return c.commandLoop(ctx)
	})
	group.Go(func() error {
		return c.barLoop(ctx)
	})
	group.Go(func() error {
		return c.sessionLoop(ctx)
	})
	err := group.Wait()
	c.wg.Wait()
	return err
}

// OnTick delivers a tick to the controller mailbox.
func (c *Controller) OnTick(ctx context.Context, t Tick) {
	c.post(ctx, ctrlTick{tick: t})
}

// Subscribe requests a new bar aggregation stream.
func (c *Controller) Subscribe(ctx context.Context, barType BarType) {
	c.post(ctx, ctrlSubscribe{barType: barType})
}

// Unsubscribe tears an aggregation stream down.
func (c *Controller) Unsubscribe(ctx context.Context, barType BarType) {
	c.post(ctx, ctrlUnsubscribe{barType: barType})
}

// MarketOpened notifies the controller that the market opened for a symbol.
func (c *Controller) MarketOpened(ctx context.Context, symbol string) {
	c.post(ctx, ctrlMarketOpened{symbol: symbol})
}

// MarketClosed notifies the controller that the market closed for a symbol.
func (c *Controller) MarketClosed(ctx context.Context, symbol string) {
	c.post(ctx, ctrlMarketClosed{symbol: symbol})
}

// Series returns the closed-bar history of an aggregation stream.
func (c *Controller) Series(barType BarType) (*BarSeries, bool) {
	c.seriesMu.RLock()
	defer c.seriesMu.RUnlock()
	s, ok := c.series[barType]
	return s, ok
}

// Spread returns the spread analyzer of a symbol.
func (c *Controller) Spread(symbol string) (*SpreadAnalyzer, bool) {
	c.aggMu.RLock()
	defer c.aggMu.RUnlock()
	h, ok := c.aggregators[symbol]
	if !ok {
		return nil, false
	}
	return h.agg.Analyzer(), true
}

func (c *Controller) post(ctx context.Context, msg ctrlMsg) {
	select {
	case c.mailbox <- msg:
	case <-ctx.Done():
	}
}

func (c *Controller) commandLoop(ctx context.Context) error {
	for {
		select {
		case msg := <-c.mailbox:
			c.dispatch(ctx, msg)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, msg ctrlMsg) {
	switch m := msg.(type) {
	case ctrlTick:
		c.onTick(ctx, m.tick)
	case ctrlSubscribe:
		c.onSubscribe(ctx, m.barType)
	case ctrlUnsubscribe:
		c.onUnsubscribe(ctx, m.barType)
	case ctrlCloseBar:
		c.onCloseBar(ctx, m.barType, m.scheduled)
	case ctrlMarketOpened:
		c.onMarketOpened(ctx, m.symbol)
	case ctrlMarketClosed:
		c.onMarketClosed(ctx, m.symbol)
	case ctrlSessionChanged:
		c.onSessionChanged(ctx, m.open)
	}
}

// onTick routes the tick to its symbol's aggregator and forwards it to
// the downstream sink. A tick for a symbol with no aggregator is logged
// and dropped.
func (c *Controller) onTick(ctx context.Context, t Tick) {
	h, ok := c.aggregators[t.Symbol]
	if !ok {
		log.Warn().Str("symbol", t.Symbol).Msg("tick for unsubscribed symbol, dropping")
		return
	}
	h.agg.SendTick(ctx, t)
	c.sink.SendTick(t)
}

// onSubscribe registers a new aggregation stream. The per-symbol
// aggregator is created lazily; the close-bar schedule is armed only if
// the market is currently open, otherwise the subscription waits for the
// next market-open.
func (c *Controller) onSubscribe(ctx context.Context, barType BarType) {
	if _, ok := c.schedules[barType]; ok {
		log.Error().Str("bar_type", barType.String()).Msg("already subscribed, ignoring")
		return
	}

	h, ok := c.aggregators[barType.Symbol]
	if !ok {
		h = c.startAggregator(ctx, barType.Symbol)
	}
	h.agg.Subscribe(ctx, barType.Spec)

	c.seriesMu.Lock()
	if _, ok := c.series[barType]; !ok {
		c.series[barType] = NewBarSeries(barType)
	}
	c.seriesMu.Unlock()

	if c.calendar.IsOpen(time.Now().UTC()) {
		c.schedules[barType] = c.armSchedule(ctx, barType)
	} else {
		c.schedules[barType] = nil
		log.Info().Str("bar_type", barType.String()).Msg("market closed, subscription registered without schedule")
	}
}

// onUnsubscribe tears a stream down and drops the symbol's aggregator when
// it was the last subscription of the symbol.
func (c *Controller) onUnsubscribe(ctx context.Context, barType BarType) {
	handle, ok := c.schedules[barType]
	if !ok {
		log.Error().Str("bar_type", barType.String()).Msg("not subscribed, ignoring")
		return
	}
	if handle != nil {
		handle.Cancel()
	}
	delete(c.schedules, barType)

	h, ok := c.aggregators[barType.Symbol]
	if !ok {
		return
	}
	h.agg.Unsubscribe(ctx, barType.Spec)

	for bt := range c.schedules {
		if bt.Symbol == barType.Symbol {
			return
		}
	}
	h.cancel()
	c.aggMu.Lock()
	delete(c.aggregators, barType.Symbol)
	c.aggMu.Unlock()
	log.Info().Str("symbol", barType.Symbol).Msg("last subscription removed, aggregator dropped")
}

// onCloseBar forwards a scheduled close trigger to the symbol's aggregator.
// A trigger may still arrive after an unsubscribe canceled its schedule.
func (c *Controller) onCloseBar(ctx context.Context, barType BarType, scheduled time.Time) {
	if _, ok := c.schedules[barType]; !ok {
		log.Warn().Str("bar_type", barType.String()).Msg("close-bar trigger for unsubscribed bar type, dropping")
		return
	}
	h, ok := c.aggregators[barType.Symbol]
	if !ok {
		return
	}
	h.agg.CloseBar(ctx, barType.Spec, scheduled)
}

// onMarketOpened arms a fresh schedule for every subscription of the
// symbol that lacks one.
func (c *Controller) onMarketOpened(ctx context.Context, symbol string) {
	for bt, handle := range c.schedules {
		if bt.Symbol != symbol || handle != nil {
			continue
		}
		c.schedules[bt] = c.armSchedule(ctx, bt)
	}
	log.Info().Str("symbol", symbol).Msg("market opened, schedules armed")
}

// onMarketClosed disarms every active schedule of the symbol, keeping the
// subscription records, and tells the aggregator to purge its builders.
func (c *Controller) onMarketClosed(ctx context.Context, symbol string) {
	for bt, handle := range c.schedules {
		if bt.Symbol != symbol || handle == nil {
			continue
		}
		handle.Cancel()
		c.schedules[bt] = nil
	}
	if h, ok := c.aggregators[symbol]; ok {
		h.agg.MarketClosed(ctx)
	}
	log.Info().Str("symbol", symbol).Msg("market closed, schedules disarmed")
}

func (c *Controller) onSessionChanged(ctx context.Context, open bool) {
	symbols := make([]string, 0, len(c.aggregators))
	for symbol := range c.aggregators {
		symbols = append(symbols, symbol)
	}
	for _, symbol := range symbols {
		if open {
			c.onMarketOpened(ctx, symbol)
		} else {
			c.onMarketClosed(ctx, symbol)
		}
	}
}

func (c *Controller) startAggregator(ctx context.Context, symbol string) *aggHandle {
	aggCtx, cancel := context.WithCancel(ctx)
	h := &aggHandle{agg: NewAggregator(symbol, c.bars), cancel: cancel}
	c.aggMu.Lock()
	c.aggregators[symbol] = h
	c.aggMu.Unlock()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = h.agg.Run(aggCtx)
	}()
	log.Info().Str("symbol", symbol).Msg("aggregator started")
	return h
}

// armSchedule computes the delay to the next resolution-aligned boundary
// and registers a repeating schedule firing a close-bar trigger at every
// subsequent boundary.
func (c *Controller) armSchedule(ctx context.Context, barType BarType) CancelableSchedule {
	first := NextCloseTime(time.Now().UTC(), barType.Spec)
	return c.scheduler.ScheduleRepeating(first, barType.Spec.Interval(), func(scheduled time.Time) {
		c.post(ctx, ctrlCloseBar{barType: barType, scheduled: scheduled})
	})
}

// barLoop consumes closed bars emitted by the aggregators, records them
// in the per-stream series and forwards them downstream.
func (c *Controller) barLoop(ctx context.Context) error {
	for {
		select {
		case data := <-c.bars:
			c.seriesMu.RLock()
			series, ok := c.series[data.BarType]
			c.seriesMu.RUnlock()
			if ok {
				series.Add(data.Bar)
			}
			c.sink.SendBar(data)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// sessionLoop watches the weekly session predicate and posts a message on
// every open / close transition.
func (c *Controller) sessionLoop(ctx context.Context) error {
	open := c.calendar.IsOpen(time.Now().UTC())
	tick := time.NewTicker(sessionPollInterval)
	defer tick.Stop()
	for {
		select {
		case now := <-tick.C:
			if next := c.calendar.IsOpen(now.UTC()); next != open {
				open = next
				c.post(ctx, ctrlSessionChanged{open: next})
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
