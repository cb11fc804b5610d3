package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/commongraph/graphview/pkg/style"
)

const (
	defaultAddr       = "127.0.0.1:8090"
	defaultBackendURL = "http://127.0.0.1:8000"
	defaultTheme      = "system"
)

type Config struct {
	BackendURL     string
	Addr           string
	State          string
	Theme          style.Theme
	DimmedStatuses []string
	Token          string
	BackendToken   string
	TLSCert        string
	TLSKey         string
	Debug          bool
}

func LoadConfig(args []string) (Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	defaultState := "sqlite:" + filepath.Join(cwd, "graphview.db")

	backendURL := envOrDefault("GRAPHVIEW_BACKEND_URL", defaultBackendURL)
	addr := addrFromEnv(defaultAddr)
	state := envOrDefault("GRAPHVIEW_STATE", defaultState)
	theme := envOrDefault("GRAPHVIEW_THEME", defaultTheme)
	dimmed := os.Getenv("GRAPHVIEW_DIMMED_STATUSES")
	token := os.Getenv("GRAPHVIEW_TOKEN")
	backendToken := os.Getenv("GRAPHVIEW_BACKEND_TOKEN")
	debug := false
	if debugEnv := os.Getenv("GRAPHVIEW_DEBUG"); debugEnv != "" {
		parsed, err := strconv.ParseBool(debugEnv)
		if err != nil {
			return Config{}, fmt.Errorf("invalid GRAPHVIEW_DEBUG: %w", err)
		}
		debug = parsed
	}

	flagSet := flag.NewFlagSet("graphview-d", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagBackend := flagSet.String("backend", backendURL, "graph platform base URL")
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagState := flagSet.String("state", state, "state store: memory|sqlite:<path>|file:<dir>|redis://host:port/db")
	flagTheme := flagSet.String("theme", theme, "color theme: light|dark|system")
	flagDimmed := flagSet.String("dimmed-statuses", dimmed, "comma-separated node statuses drawn dimmed")
	flagToken := flagSet.String("token", token, "bearer token required by POST /v1/config/reload")
	flagBackendToken := flagSet.String("backend-token", backendToken, "bearer token sent to the backend")
	flagTLSCert := flagSet.String("tls-cert", "", "TLS certificate file")
	flagTLSKey := flagSet.String("tls-key", "", "TLS key file")
	flagDebug := flagSet.Bool("debug", debug, "enable debug logging")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	config := Config{
		BackendURL:     strings.TrimRight(strings.TrimSpace(*flagBackend), "/"),
		Addr:           strings.TrimSpace(*flagAddr),
		State:          normalizeState(*flagState, cwd),
		Theme:          style.ParseTheme(*flagTheme),
		DimmedStatuses: splitList(*flagDimmed),
		Token:          strings.TrimSpace(*flagToken),
		BackendToken:   strings.TrimSpace(*flagBackendToken),
		TLSCert:        resolvePath(*flagTLSCert, cwd),
		TLSKey:         resolvePath(*flagTLSKey, cwd),
		Debug:          *flagDebug,
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}
	if config.BackendURL == "" {
		return Config{}, errors.New("backend cannot be empty")
	}
	if !strings.HasPrefix(config.BackendURL, "http://") && !strings.HasPrefix(config.BackendURL, "https://") {
		return Config{}, fmt.Errorf("backend must be an http(s) URL: %s", config.BackendURL)
	}
	if (config.TLSCert == "") != (config.TLSKey == "") {
		return Config{}, errors.New("tls-cert and tls-key must be set together")
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("GRAPHVIEW_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("GRAPHVIEW_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}

// normalizeState resolves relative sqlite and file paths against cwd.
func normalizeState(dsn string, cwd string) string {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.EqualFold(dsn, "memory"), strings.EqualFold(dsn, "none"):
		return "memory"
	case strings.HasPrefix(dsn, "sqlite:"):
		path := strings.TrimPrefix(dsn, "sqlite:")
		if path == "" {
			return dsn
		}
		return "sqlite:" + resolvePath(path, cwd)
	case strings.HasPrefix(dsn, "file:"):
		return "file:" + resolvePath(strings.TrimPrefix(dsn, "file:"), cwd)
	default:
		return dsn
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
