package storage

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/novagaze/barforge/internal/config"
	"github.com/novagaze/barforge/internal/datakey"
	"github.com/novagaze/barforge/internal/market"
)

// Dispatcher is the downstream sink of the aggregation pipeline. It keys
// closed bars and forwarded ticks with their calendar-day partition key,
// buffers them per storage system and hands full batches to the committer
// goroutines over channels. Sends never block: a batch is dropped with a
// log entry if its committer is behind.
//
// Bar and tick paths keep disjoint state, each is driven by exactly one
// pipeline goroutine.
type Dispatcher struct {
	provider *datakey.Provider
	venue    string
	connCfg  *config.Connection

	ter   *Terminal
	mysql *MySQL
	es    *ElasticSearch

	terBars    chan []BarRow
	terTicks   chan []TickRow
	mysqlBars  chan []BarRow
	mysqlTicks chan []TickRow
	esBars     chan []BarRow
	esTicks    chan []TickRow

	terBarBuf    []BarRow
	mysqlBarBuf  []BarRow
	esBarBuf     []BarRow
	terTickBuf   []TickRow
	mysqlTickBuf []TickRow
	esTickBuf    []TickRow
}

// NewDispatcher creates a dispatcher for the enabled storage systems.
// Nil storages are skipped.
func NewDispatcher(provider *datakey.Provider, venue string, connCfg *config.Connection, ter *Terminal, mysql *MySQL, es *ElasticSearch) *Dispatcher {
	d := &Dispatcher{
		provider: provider,
		venue:    venue,
		connCfg:  connCfg,
		ter:      ter,
		mysql:    mysql,
		es:       es,
	}
	if ter != nil {
		d.terBars = make(chan []BarRow, 1)
		d.terTicks = make(chan []TickRow, 1)
	}
	if mysql != nil {
		d.mysqlBars = make(chan []BarRow, 1)
		d.mysqlTicks = make(chan []TickRow, 1)
	}
	if es != nil {
		d.esBars = make(chan []BarRow, 1)
		d.esTicks = make(chan []TickRow, 1)
	}
	return d
}

// SendBar keys one closed bar and stages it for every enabled storage.
func (d *Dispatcher) SendBar(data market.BarData) {
	date := datakey.DateKeyFromTime(data.Bar.Timestamp)
	spec := data.BarType.Spec.String()
	row := BarRow{
		Key:           d.provider.BarKey(data.BarType.Symbol, spec, date),
		Venue:         d.venue,
		Symbol:        data.BarType.Symbol,
		Specification: spec,
		Open:          data.Bar.Open,
		High:          data.Bar.High,
		Low:           data.Bar.Low,
		Close:         data.Bar.Close,
		Volume:        data.Bar.Volume,
		Timestamp:     data.Bar.Timestamp,
	}
	if d.ter != nil {
		d.terBarBuf = append(d.terBarBuf, row)
		if len(d.terBarBuf) >= bufSize(d.connCfg.Terminal.BarCommitBuf) {
			d.terBarBuf = flushBars(d.terBars, d.terBarBuf, "terminal")
		}
	}
	if d.mysql != nil {
		d.mysqlBarBuf = append(d.mysqlBarBuf, row)
		if len(d.mysqlBarBuf) >= bufSize(d.connCfg.MySQL.BarCommitBuf) {
			d.mysqlBarBuf = flushBars(d.mysqlBars, d.mysqlBarBuf, "mysql")
		}
	}
	if d.es != nil {
		d.esBarBuf = append(d.esBarBuf, row)
		if len(d.esBarBuf) >= bufSize(d.connCfg.ES.BarCommitBuf) {
			d.esBarBuf = flushBars(d.esBars, d.esBarBuf, "elastic_search")
		}
	}
}

// SendTick keys one forwarded tick and stages it for every enabled storage.
func (d *Dispatcher) SendTick(t market.Tick) {
	row := TickRow{
		Key:       d.provider.TickKey(t.Symbol, datakey.DateKeyFromTime(t.Timestamp)),
		Venue:     d.venue,
		Symbol:    t.Symbol,
		Bid:       t.Bid,
		Ask:       t.Ask,
		Timestamp: t.Timestamp,
	}
	if d.ter != nil {
		d.terTickBuf = append(d.terTickBuf, row)
		if len(d.terTickBuf) >= bufSize(d.connCfg.Terminal.TickCommitBuf) {
			d.terTickBuf = flushTicks(d.terTicks, d.terTickBuf, "terminal")
		}
	}
	if d.mysql != nil {
		d.mysqlTickBuf = append(d.mysqlTickBuf, row)
		if len(d.mysqlTickBuf) >= bufSize(d.connCfg.MySQL.TickCommitBuf) {
			d.mysqlTickBuf = flushTicks(d.mysqlTicks, d.mysqlTickBuf, "mysql")
		}
	}
	if d.es != nil {
		d.esTickBuf = append(d.esTickBuf, row)
		if len(d.esTickBuf) >= bufSize(d.connCfg.ES.TickCommitBuf) {
			d.esTickBuf = flushTicks(d.esTicks, d.esTickBuf, "elastic_search")
		}
	}
}

// Run starts one committer per enabled storage and blocks until the
// context is canceled or a commit fails.
func (d *Dispatcher) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	if d.ter != nil {
		group.Go(func() error {
			return d.barsToTerminal(ctx)
		})
		group.Go(func() error {
			return d.ticksToTerminal(ctx)
		})
	}
	if d.mysql != nil {
		group.Go(func() error {
			return d.barsToMySQL(ctx)
		})
		group.Go(func() error {
			return d.ticksToMySQL(ctx)
		})
	}
	if d.es != nil {
		group.Go(func() error {
			return d.barsToES(ctx)
		})
		group.Go(func() error {
			return d.ticksToES(ctx)
		})
	}
	return group.Wait()
}

func (d *Dispatcher) barsToTerminal(ctx context.Context) error {
	for {
		select {
		case data := <-d.terBars:
			d.ter.CommitBars(data)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) ticksToTerminal(ctx context.Context) error {
	for {
		select {
		case data := <-d.terTicks:
			d.ter.CommitTicks(data)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) barsToMySQL(ctx context.Context) error {
	for {
		select {
		case data := <-d.mysqlBars:
			err := d.mysql.CommitBars(ctx, data)
			if err != nil {
				if !errors.Is(err, ctx.Err()) {
					logErrStack(err)
				}
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) ticksToMySQL(ctx context.Context) error {
	for {
		select {
		case data := <-d.mysqlTicks:
			err := d.mysql.CommitTicks(ctx, data)
			if err != nil {
				if !errors.Is(err, ctx.Err()) {
					logErrStack(err)
				}
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) barsToES(ctx context.Context) error {
	for {
		select {
		case data := <-d.esBars:
			err := d.es.CommitBars(ctx, data)
			if err != nil {
				if !errors.Is(err, ctx.Err()) {
					logErrStack(err)
				}
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) ticksToES(ctx context.Context) error {
	for {
		select {
		case data := <-d.esTicks:
			err := d.es.CommitTicks(ctx, data)
			if err != nil {
				if !errors.Is(err, ctx.Err()) {
					logErrStack(err)
				}
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func flushBars(ch chan []BarRow, batch []BarRow, str string) []BarRow {
	select {
	case ch <- batch:
		return nil
	default:
		log.Warn().Str("storage", str).Int("count", len(batch)).Msg("bar committer behind, dropping batch")
		return batch[:0]
	}
}

func flushTicks(ch chan []TickRow, batch []TickRow, str string) []TickRow {
	select {
	case ch <- batch:
		return nil
	default:
		log.Warn().Str("storage", str).Int("count", len(batch)).Msg("tick committer behind, dropping batch")
		return batch[:0]
	}
}

func bufSize(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// logErrStack logs error with stack trace.
func logErrStack(err error) {
	log.Error().Stack().Err(errors.WithStack(err)).Msg("")
}
