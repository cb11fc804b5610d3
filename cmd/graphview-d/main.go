package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/commongraph/graphview/pkg/api"
	"github.com/commongraph/graphview/pkg/client"
	"github.com/commongraph/graphview/pkg/prefs"
	"github.com/commongraph/graphview/pkg/render"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := LoadConfig(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		slog.Error("invalid_config", "error", err)
		return 2
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger = logger.With("component", "graphview-d")

	logger.Info("system_started", "backend", cfg.BackendURL, "addr", cfg.Addr, "state", cfg.State)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state, err := prefs.Open(ctx, cfg.State)
	if err != nil {
		logger.Error("failed_to_init_state_store", "error", err)
		return 1
	}
	logger.Info("state_store_initialized", "state", cfg.State)

	var clientOpts []client.Option
	if cfg.BackendToken != "" {
		clientOpts = append(clientOpts, client.WithTokenSource(client.StaticToken(cfg.BackendToken)))
	}
	backend := client.NewClient(cfg.BackendURL, clientOpts...)

	session := render.NewSession(backend, render.Options{
		Theme:          cfg.Theme,
		DimmedStatuses: cfg.DimmedStatuses,
		State:          state,
	})
	if err := session.Load(ctx, false); err != nil {
		// The daemon still serves; the next request retries the load.
		logger.Warn("initial_load_incomplete", "error", err)
	}

	srv := api.NewServer(session, cfg.Addr, api.WithToken(cfg.Token))
	if cfg.TLSCert != "" {
		srv.SetTLS(cfg.TLSCert, cfg.TLSKey)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	exitCode := 0
loop:
	for {
		select {
		case sig := <-sigs:
			if sig == syscall.SIGHUP {
				logger.Info("reload_requested")
				if err := session.Load(ctx, true); err != nil {
					logger.Warn("reload_incomplete", "error", err)
				} else {
					logger.Info("reload_complete")
				}
				continue
			}
			logger.Info("shutdown_initiated", "signal", sig.String())
			break loop
		case err := <-errCh:
			if err != nil {
				logger.Error("server_failed", "error", err)
				exitCode = 1
			}
			break loop
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("failed_to_stop_server", "error", err)
	}

	if err := state.Close(); err != nil {
		logger.Error("failed_to_close_state_store", "error", err)
	} else {
		logger.Info("state_store_closed")
	}

	logger.Info("shutdown_complete")
	return exitCode
}
