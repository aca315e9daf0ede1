package feed

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/novagaze/barforge/internal/config"
	"github.com/novagaze/barforge/internal/connector"
	"github.com/novagaze/barforge/internal/market"
)

// Start runs the quote feed and keeps it running.
// If any error occurs or connection is lost, retry the feed with a time gap
// till it reaches a configured number of retry.
// Retry counter will be reset back to zero if the elapsed time since the
// last retry is greater than the configured one.
func Start(appCtx context.Context, cfg *config.Config, ctrl *market.Controller) error {
	var retryCount int
	lastRetryTime := time.Now()
	retry := cfg.Feed.Retry

	for {
		err := newFeed(appCtx, cfg, ctrl)
		if err != nil {
			log.Error().Err(err).Str("feed", cfg.Feed.URL).Msg("error occurred")
			if retry.Number == 0 {
				return errors.New("not able to connect quote feed. please check the log for details")
			}
			if retry.ResetSec == 0 || time.Since(lastRetryTime).Seconds() < float64(retry.ResetSec) {
				retryCount++
			} else {
				retryCount = 1
			}
			lastRetryTime = time.Now()
			if retryCount > retry.Number {
				return fmt.Errorf("not able to connect quote feed even after %v retry. please check the log for details", retry.Number)
			}

			log.Error().Str("feed", cfg.Feed.URL).Int("retry", retryCount).Msg(fmt.Sprintf("retrying in %v seconds", retry.GapSec))
			tick := time.NewTicker(time.Duration(retry.GapSec) * time.Second)
			select {
			case <-tick.C:
				tick.Stop()

			// Return, if there is any error from another part of the app.
			case <-appCtx.Done():
				log.Error().Str("feed", cfg.Feed.URL).Msg("ctx canceled, return from Start")
				return appCtx.Err()
			}
		}
	}
}

type feed struct {
	ws         connector.Websocket
	cfg        *config.Feed
	connCfg    *config.Connection
	precisions map[string]int
	ctrl       *market.Controller
}

// wsSubFeed is the channel subscription request frame.
type wsSubFeed struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// wsRespFeed is one quote update frame from the feed server.
type wsRespFeed struct {
	Symbol string `json:"symbol"`
	Bid    string `json:"bid"`
	Ask    string `json:"ask"`
	Time   int64  `json:"ts"`
	Error  string `json:"error"`
}

func newFeed(appCtx context.Context, cfg *config.Config, ctrl *market.Controller) error {

	// If the reader or the connection watcher fails, force the other to stop and return.
	feedErrGroup, ctx := errgroup.WithContext(appCtx)

	f := feed{
		cfg:        &cfg.Feed,
		connCfg:    &cfg.Connection,
		precisions: make(map[string]int, len(cfg.Instruments)),
		ctrl:       ctrl,
	}
	for _, instrument := range cfg.Instruments {
		f.precisions[instrument.Symbol] = instrument.PricePrecision
	}

	err := f.connectWs(ctx)
	if err != nil {
		return err
	}

	feedErrGroup.Go(func() error {
		return f.closeWsConnOnError(ctx)
	})

	feedErrGroup.Go(func() error {
		return f.readWs(ctx)
	})

	err = f.subWsQuotes(cfg.Instruments)
	if err != nil {
		return err
	}

	return feedErrGroup.Wait()
}

func (f *feed) connectWs(ctx context.Context) error {
	ws, err := connector.NewWebsocket(ctx, &f.connCfg.WS, f.cfg.URL)
	if err != nil {
		if !errors.Is(err, ctx.Err()) {
			logErrStack(err)
		}
		return err
	}
	f.ws = ws
	log.Info().Str("feed", f.cfg.URL).Msg("websocket connected")
	return nil
}

// closeWsConnOnError closes websocket connection if there is any error in app context.
// This will unblock all read and writes on websocket.
func (f *feed) closeWsConnOnError(ctx context.Context) error {
	<-ctx.Done()
	err := f.ws.Conn.Close()
	if err != nil {
		return err
	}
	return ctx.Err()
}

// subWsQuotes sends the quote subscription request for all configured
// instruments to the websocket server.
func (f *feed) subWsQuotes(instruments []config.Instrument) error {
	symbols := make([]string, 0, len(instruments))
	for _, instrument := range instruments {
		symbols = append(symbols, instrument.Symbol)
	}
	sub := wsSubFeed{
		Op:      "subscribe",
		Symbols: symbols,
	}
	frame, err := jsoniter.Marshal(sub)
	if err != nil {
		logErrStack(err)
		return err
	}
	err = f.ws.Write(frame)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			err = errors.New("context canceled")
		} else {
			logErrStack(err)
		}
		return err
	}
	return nil
}

// readWs reads quote frames from the websocket connection, transforms them
// to ticks and forwards the ticks to the aggregation controller.
func (f *feed) readWs(ctx context.Context) error {
	for {
		select {
		default:
			frame, err := f.ws.Read()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					err = errors.New("context canceled")
				} else {
					if err == io.EOF {
						err = errors.Wrap(err, "connection close by feed server")
					}
					logErrStack(err)
				}
				return err
			}
			if len(frame) == 0 {
				continue
			}

			wr := wsRespFeed{}
			err = jsoniter.Unmarshal(frame, &wr)
			if err != nil {
				logErrStack(err)
				return err
			}

			if wr.Error != "" {
				log.Error().Str("feed", f.cfg.URL).Str("msg", wr.Error).Msg("")
				return errors.New("quote feed error")
			}
			if wr.Symbol == "" {
				continue
			}

			err = f.processWs(ctx, &wr)
			if err != nil {
				return err
			}

		// Return, if there is any error from another function of the app.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// processWs transforms one quote frame to the common tick form and
// forwards it to the controller.
func (f *feed) processWs(ctx context.Context, wr *wsRespFeed) error {
	precision, ok := f.precisions[wr.Symbol]
	if !ok {
		log.Warn().Str("symbol", wr.Symbol).Msg("quote for unconfigured instrument, dropping")
		return nil
	}

	bid, err := strconv.ParseFloat(wr.Bid, 64)
	if err != nil {
		logErrStack(err)
		return err
	}
	ask, err := strconv.ParseFloat(wr.Ask, 64)
	if err != nil {
		logErrStack(err)
		return err
	}

	tick := market.Tick{
		Symbol:    wr.Symbol,
		Bid:       bid,
		Ask:       ask,
		Precision: precision,

		// Time sent is in milliseconds.
		Timestamp: time.Unix(0, wr.Time*int64(time.Millisecond)).UTC(),
	}
	f.ctrl.OnTick(ctx, tick)
	return nil
}

// logErrStack logs error with stack trace.
func logErrStack(err error) {
	log.Error().Stack().Err(errors.WithStack(err)).Msg("")
}
