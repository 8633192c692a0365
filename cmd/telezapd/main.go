package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kvasnell/telezap/internal/channels"
	"github.com/kvasnell/telezap/internal/config"
	"github.com/kvasnell/telezap/internal/db"
	"github.com/kvasnell/telezap/internal/logger"
	"github.com/kvasnell/telezap/internal/player"
	"github.com/kvasnell/telezap/internal/preflight"
	"github.com/kvasnell/telezap/internal/resolver"
	"github.com/kvasnell/telezap/internal/server"
	"github.com/kvasnell/telezap/internal/session"
	"github.com/kvasnell/telezap/internal/timesync"
)

const (
	migrationsPath  = "file://./migrations"
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "telezapd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	logger.Log.Info().Msg("telezapd starting")

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to close database")
		}
	}()

	sqlDB, err := database.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := db.RunMigrations(sqlDB, migrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repos := db.NewRepositories(database, cfg.Stream.DefaultServer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings, err := repos.Settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	channelService := channels.NewService(repos.Channels)
	if err := channelService.Load(ctx); err != nil {
		return fmt.Errorf("failed to load channels: %w", err)
	}

	engine := timesync.NewEngine(cfg.TimeSync.Servers, cfg.TimeSync.QueryTimeout, cfg.TimeSync.ResyncInterval)
	engine.SetTimeServer(settings.TimeServer)

	endpoint := resolver.NewEndpoint(settings.StreamServer)
	addressResolver := resolver.New(engine, endpoint.Provider())

	sink := player.NewExecSink(cfg.Player.Binary, cfg.Player.Args)
	controller := session.NewController(channelService, addressResolver, sink, cfg.Session.DebounceWindow, cfg.Session.MaxDigits)
	controller.SetChannelChanged(func(index int) {
		go func() {
			if err := repos.Settings.SetLastChannel(context.Background(), index); err != nil {
				logger.Log.Warn().Err(err).Int("index", index).Msg("Failed to persist last channel")
			}
		}()
	})

	// The preflight gate is a hard precondition: nothing else runs until the
	// required host has been reached.
	guard := preflight.NewGuard(cfg.Preflight.Host, cfg.Preflight.MaxAttempts, cfg.Preflight.ProbeTimeout, cfg.Preflight.RetryDelay)
	guardResult := make(chan error, 1)
	guard.Run(ctx, func() {
		guardResult <- nil
	}, func(err error) {
		guardResult <- err
	})

	if err := <-guardResult; err != nil {
		return fmt.Errorf("network preflight check failed: %w", err)
	}

	engine.SyncAsync(func(result timesync.Result) {
		if !result.OK {
			logger.Log.Warn().Str("message", result.Message).Msg("Initial time sync failed, using local clock")
		}
	})
	engine.Start()

	// Resume the last played channel, if one is remembered and still valid
	if settings.LastChannel >= 0 && settings.LastChannel < channelService.Count() {
		go controller.SwitchTo(settings.LastChannel)
	}

	srv := server.New(cfg, database, repos, channelService, engine, guard, endpoint, controller)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("control server failed: %w", err)
	case sig := <-quit:
		logger.Log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	return nil
}
