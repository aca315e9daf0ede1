package initializer

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"golang.org/x/sync/errgroup"

	"github.com/novagaze/barforge/internal/config"
	"github.com/novagaze/barforge/internal/datakey"
	"github.com/novagaze/barforge/internal/feed"
	"github.com/novagaze/barforge/internal/market"
	"github.com/novagaze/barforge/internal/storage"
)

// Start will initialize various required systems and then execute the app.
func Start(mainCtx context.Context, cfg *config.Config) error {

	// Setting up logger.
	// If the path given in the config for logging ends with .log then create a log file with the same name and
	// write log messages to it. Otherwise, create a new log file with a timestamp attached to it's name in the given path.
	var (
		logFile *os.File
		err     error
	)
	if strings.HasSuffix(cfg.Log.FilePath, ".log") {
		logFile, err = os.OpenFile(cfg.Log.FilePath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0666)
		if err != nil {
			return fmt.Errorf("not able to open or create log file: %v", cfg.Log.FilePath)
		}
	} else {
		logFile, err = os.Create(cfg.Log.FilePath + "_" + strconv.Itoa(int(time.Now().Unix())) + ".log")
		if err != nil {
			return fmt.Errorf("not able to create log file: %v", cfg.Log.FilePath+"_"+strconv.Itoa(int(time.Now().Unix()))+".log")
		}
	}
	defer logFile.Close()

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	switch cfg.Log.Level {
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	fileLogger := zerolog.New(logFile).With().Timestamp().Logger()
	log.Logger = fileLogger
	log.Info().Msg("logger setup is done")

	// Validate user defined config values and resolve the subscriptions
	// before connecting anywhere.
	barTypes, err := resolveSubscriptions(cfg)
	if err != nil {
		log.Error().Stack().Err(errors.WithStack(err)).Msg("")
		return err
	}

	// Establish connections to the configured storage systems.
	var (
		ter   *storage.Terminal
		mysql *storage.MySQL
		es    *storage.ElasticSearch
	)
	if cfg.Connection.Terminal.Enabled {
		ter = storage.InitTerminal(os.Stdout)
		log.Info().Msg("terminal connected")
	}
	if cfg.Connection.MySQL.Enabled {
		mysql, err = storage.InitMySQL(&cfg.Connection.MySQL)
		if err != nil {
			err = errors.Wrap(err, "mysql connection")
			log.Error().Stack().Err(errors.WithStack(err)).Msg("")
			return err
		}
		log.Info().Msg("mysql connected")
	}
	if cfg.Connection.ES.Enabled {
		es, err = storage.InitElasticSearch(&cfg.Connection.ES)
		if err != nil {
			err = errors.Wrap(err, "elastic search connection")
			log.Error().Stack().Err(errors.WithStack(err)).Msg("")
			return err
		}
		log.Info().Msg("elastic search connected")
	}

	provider := datakey.NewProvider(cfg.Key.Namespace, cfg.Venue)
	dispatcher := storage.NewDispatcher(provider, cfg.Venue, &cfg.Connection, ter, mysql, es)
	calendar := market.NewWeeklySession(cfg.Session)
	controller := market.NewController(calendar, market.NewTimerScheduler(), dispatcher)

	// Start the pipeline. If any part fails, force all the others to stop
	// and exit the app.
	appErrGroup, appCtx := errgroup.WithContext(mainCtx)

	appErrGroup.Go(func() error {
		return controller.Run(appCtx)
	})
	appErrGroup.Go(func() error {
		return dispatcher.Run(appCtx)
	})

	for _, barType := range barTypes {
		controller.Subscribe(appCtx, barType)
	}

	appErrGroup.Go(func() error {
		return feed.Start(appCtx, cfg, controller)
	})

	err = appErrGroup.Wait()
	if err != nil {
		log.Error().Msg("exiting the app")
		return err
	}
	return nil
}

// resolveSubscriptions converts the configured subscriptions to bar types,
// validating them against the configured instruments.
func resolveSubscriptions(cfg *config.Config) ([]market.BarType, error) {
	instruments := make(map[string]bool, len(cfg.Instruments))
	for _, instrument := range cfg.Instruments {
		instruments[instrument.Symbol] = true
	}

	barTypes := make([]market.BarType, 0, len(cfg.Subscriptions))
	for _, sub := range cfg.Subscriptions {
		if !instruments[sub.Symbol] {
			return nil, errors.New("subscription for unconfigured instrument: " + sub.Symbol)
		}
		if sub.Period < 1 {
			return nil, errors.New("subscription period should be greater than zero")
		}
		resolution, err := market.ParseResolution(sub.Resolution)
		if err != nil {
			return nil, err
		}
		side, err := market.ParsePriceSide(sub.PriceSide)
		if err != nil {
			return nil, err
		}
		barTypes = append(barTypes, market.BarType{
			Symbol: sub.Symbol,
			Spec: market.BarSpecification{
				Period:     sub.Period,
				Resolution: resolution,
				Side:       side,
			},
		})
	}
	return barTypes, nil
}
