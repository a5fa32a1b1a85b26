package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/studio-scheduler/internal/application"
	"github.com/example/studio-scheduler/internal/config"
	httptransport "github.com/example/studio-scheduler/internal/http"
	"github.com/example/studio-scheduler/internal/logging"
	"github.com/example/studio-scheduler/internal/notify"
	"github.com/example/studio-scheduler/internal/persistence/sqlite"
)

type app struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *sqlite.Store
	dispatcher *notify.Dispatcher
	handler    http.Handler
}

func openStore(ctx context.Context, configPath string, logOutput io.Writer, migrate bool) (*sqlite.Store, appEnv, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, appEnv{}, err
	}
	logger, err := logging.New(logOutput, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, appEnv{}, err
	}

	store, err := sqlite.Open(cfg.Database.DSN, sqlite.WithLogger(logger))
	if err != nil {
		return nil, appEnv{}, fmt.Errorf("open storage: %w", err)
	}
	if migrate {
		applied, err := store.Migrate(ctx)
		if err != nil {
			_ = store.Close()
			return nil, appEnv{}, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("schema up to date", "applied", applied)
	}
	return store, appEnv{cfg: cfg, logger: logger}, nil
}

type appEnv struct {
	cfg    config.Config
	logger *slog.Logger
}

// loadApp opens and migrates storage, starts the notification workers and
// wires every service behind the HTTP router.
func loadApp(ctx context.Context, configPath string, logOutput io.Writer) (*app, error) {
	store, env, err := openStore(ctx, configPath, logOutput, true)
	if err != nil {
		return nil, err
	}
	cfg, logger := env.cfg, env.logger

	policy, err := cfg.Policy()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	dispatcher := notify.NewDispatcher(cfg.Notifications.Workers, cfg.Notifications.QueueSize, logger)
	dispatcher.Subscribe(notify.LogHandler(logger))
	dispatcher.Start(context.WithoutCancel(ctx))

	availability := application.NewAvailabilityService(store, application.AvailabilityServiceConfig{
		Trainers:  store,
		Publisher: dispatcher,
		Location:  policy.Location,
		CacheTTL:  cfg.Cache.AvailabilityTTL,
		Logger:    logger,
	})
	scheduling := application.NewSchedulingService(store, availability, application.SchedulingServiceConfig{
		Policy:    policy,
		Publisher: dispatcher,
		CacheTTL:  cfg.Cache.TTL,
		CacheSize: cfg.Cache.MaxEntries,
		Logger:    logger,
	})
	gestures := application.NewGestureService(scheduling, application.GestureServiceConfig{
		Publisher:   dispatcher,
		Logger:      logger,
		IdleTimeout: cfg.Cache.GestureIdleTimeout,
		MaxActive:   cfg.Cache.MaxGestures,
	})
	trainers := application.NewTrainerService(store, nil, logger)

	middleware := []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)}
	if cfg.HTTP.RateLimit > 0 {
		middleware = append(middleware, httptransport.RateLimit(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst, logger))
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Sessions:     httptransport.NewSessionHandler(scheduling, logger),
		Availability: httptransport.NewAvailabilityHandler(availability, logger),
		Trainers:     httptransport.NewTrainerHandler(trainers, logger),
		Gestures:     httptransport.NewGestureHandler(gestures, logger),
		Middleware:   middleware,
		CORSOrigins:  cfg.HTTP.CORSOrigins,
	})

	return &app{cfg: cfg, logger: logger, store: store, dispatcher: dispatcher, handler: router}, nil
}

// Serve runs the HTTP server until ctx is done or SIGINT/SIGTERM arrives.
func (a *app) Serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.HTTP.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", a.cfg.HTTP.Port, err)
	}
	return a.serve(ctx, listener)
}

func (a *app) serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("scheduler API listening", "addr", listener.Addr().String())
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	a.logger.Info("shutting down", "timeout", a.cfg.HTTP.ShutdownTimeout)
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Close stops the notification workers and releases storage.
func (a *app) Close() {
	a.dispatcher.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close storage", "error", err)
	}
}
