package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/handiism/dlqueue/internal/app"
	"github.com/handiism/dlqueue/internal/config"
	"github.com/handiism/dlqueue/internal/history"
	"github.com/handiism/dlqueue/internal/httpapi"
	"github.com/handiism/dlqueue/internal/logging"
	"github.com/handiism/dlqueue/internal/schedule"
)

func main() {
	configFlag := flag.String("config", "", "Path to config file")
	addrFlag := flag.String("addr", "", "Listen address (overrides config)")
	prettyFlag := flag.Bool("pretty", false, "Human-readable logs")
	flag.Parse()

	logger := logging.New(logging.Options{Level: "info", Pretty: *prettyFlag})

	if path, err := config.LoadDotEnv(); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to load .env")
	}

	settings := config.DefaultSettings()
	if *configFlag != "" {
		var err error
		settings, err = config.Load(*configFlag)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load config")
		}
	}
	if err := settings.ApplyEnv(); err != nil {
		logger.Fatal().Err(err).Msg("failed to read environment")
	}
	if *addrFlag != "" {
		settings.ListenAddr = *addrFlag
	}
	logger = logging.New(logging.Options{Level: settings.LogLevel, Pretty: *prettyFlag})

	if err := os.MkdirAll(settings.DataDir, 0755); err != nil {
		logger.Fatal().Err(err).Msg("failed to create data dir")
	}

	a, err := app.New(settings, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up download queue")
	}
	if err := a.Fetcher.CheckDependencies(settings.ToOptions()); err != nil {
		logger.Warn().Err(err).Msg("downloads will fail until dependencies are installed")
	}

	store, err := history.Open(settings.HistoryPath(), settings.HistoryLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open history")
	}
	defer store.Close()

	schedules, err := schedule.Open(settings.SchedulesPath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open schedules")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr: settings.ListenAddr,
		Handler: httpapi.Server{
			Manager:   a.Manager,
			Submitter: a.Queue,
			History:   store,
			Schedules: schedules,
			Defaults:  settings.ToOptions(),
			Logger:    logger.With().Str("component", "http").Logger(),
		}.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	events, unsubscribe := a.Manager.Events()
	defer unsubscribe()
	recorder := history.NewRecorder(store, logger.With().Str("component", "history").Logger())
	poller := schedule.NewPoller(schedules, a.Queue,
		schedule.WithInterval(settings.SchedulePollInterval()),
		schedule.WithLogger(logger.With().Str("component", "schedule").Logger()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", settings.ListenAddr).Msg("API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		// Keeps recording until the bus closes at shutdown.
		return recorder.Run(context.Background(), events)
	})
	g.Go(func() error {
		if err := poller.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpErr := server.Shutdown(shutdownCtx)
		return errors.Join(httpErr, a.Manager.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
}
