package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/commongraph/graphview/pkg/client"
	"github.com/commongraph/graphview/pkg/mcp"
	"github.com/commongraph/graphview/pkg/prefs"
	"github.com/commongraph/graphview/pkg/render"
	"github.com/commongraph/graphview/pkg/style"
)

var (
	Version   = "v0.1.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	backendURL := flag.String("backend", envOrDefault("GRAPHVIEW_BACKEND_URL", "http://127.0.0.1:8000"), "graph platform base URL")
	state := flag.String("state", envOrDefault("GRAPHVIEW_STATE", "memory"), "state store DSN")
	theme := flag.String("theme", envOrDefault("GRAPHVIEW_THEME", "system"), "color theme: light|dark|system")
	token := flag.String("backend-token", os.Getenv("GRAPHVIEW_BACKEND_TOKEN"), "bearer token sent to the backend")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("graphview-mcp %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		return
	}

	// stdout carries the protocol; logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	store, err := prefs.Open(context.Background(), *state)
	if err != nil {
		logger.Error("failed_to_init_state_store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var opts []client.Option
	if *token != "" {
		opts = append(opts, client.WithTokenSource(client.StaticToken(*token)))
	}
	backend := client.NewClient(*backendURL, opts...)
	session := render.NewSession(backend, render.Options{
		Theme:  style.ParseTheme(*theme),
		State:  store,
		Logger: logger,
	})

	logger.Info("mcp_server_starting", "component", "graphview-mcp", "backend", *backendURL, "version", Version)
	if err := mcp.NewServer(session, backend, Version).Serve(); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		store.Close()
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
