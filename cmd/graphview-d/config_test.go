package main

import (
	"errors"
	"flag"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commongraph/graphview/pkg/style"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig([]string{})
	require.NoError(t, err)

	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, defaultBackendURL, cfg.BackendURL)
	assert.True(t, strings.HasPrefix(cfg.State, "sqlite:"))
	assert.True(t, filepath.IsAbs(strings.TrimPrefix(cfg.State, "sqlite:")))
	assert.Equal(t, style.ThemeSystem, cfg.Theme)
	assert.Empty(t, cfg.DimmedStatuses)
	assert.False(t, cfg.Debug)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("GRAPHVIEW_BACKEND_URL", "https://graph.example.org/api/")
	t.Setenv("GRAPHVIEW_PORT", "9100")
	t.Setenv("GRAPHVIEW_STATE", "memory")
	t.Setenv("GRAPHVIEW_THEME", "DARK")
	t.Setenv("GRAPHVIEW_DIMMED_STATUSES", "draft, completed,,")
	t.Setenv("GRAPHVIEW_TOKEN", "s3cret")
	t.Setenv("GRAPHVIEW_DEBUG", "true")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, "https://graph.example.org/api", cfg.BackendURL)
	assert.Equal(t, "127.0.0.1:9100", cfg.Addr)
	assert.Equal(t, "memory", cfg.State)
	assert.Equal(t, style.ThemeDark, cfg.Theme)
	assert.Equal(t, []string{"draft", "completed"}, cfg.DimmedStatuses)
	assert.Equal(t, "s3cret", cfg.Token)
	assert.True(t, cfg.Debug)
}

func TestLoadConfig_AddrBeatsPort(t *testing.T) {
	t.Setenv("GRAPHVIEW_ADDR", "0.0.0.0:8080")
	t.Setenv("GRAPHVIEW_PORT", "9100")

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("GRAPHVIEW_STATE", "memory")
	dir := t.TempDir()

	cfg, err := LoadConfig([]string{"-state", "file:" + dir, "-addr", ":9000", "-theme", "light"})
	require.NoError(t, err)
	assert.Equal(t, "file:"+dir, cfg.State)
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, style.ThemeLight, cfg.Theme)
}

func TestLoadConfig_RelativeStatePath(t *testing.T) {
	cfg, err := LoadConfig([]string{"-state", "sqlite:data/state.db"})
	require.NoError(t, err)
	path := strings.TrimPrefix(cfg.State, "sqlite:")
	assert.True(t, filepath.IsAbs(path))
	assert.True(t, strings.HasSuffix(path, filepath.Join("data", "state.db")))

	cfg, err = LoadConfig([]string{"-state", "redis://localhost:6379/2"})
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/2", cfg.State)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		envVars     map[string]string
		errorSubstr string
	}{
		{
			name:        "empty addr",
			args:        []string{"-addr", " "},
			errorSubstr: "addr cannot be empty",
		},
		{
			name:        "non-http backend",
			args:        []string{"-backend", "ftp://graph"},
			errorSubstr: "http(s) URL",
		},
		{
			name:        "tls cert without key",
			args:        []string{"-tls-cert", "cert.pem"},
			errorSubstr: "must be set together",
		},
		{
			name:        "invalid debug env",
			envVars:     map[string]string{"GRAPHVIEW_DEBUG": "maybe"},
			errorSubstr: "invalid GRAPHVIEW_DEBUG",
		},
		{
			name:        "unknown flag",
			args:        []string{"-policy", "x"},
			errorSubstr: "flag provided but not defined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, err := LoadConfig(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorSubstr)
		})
	}
}

func TestLoadConfig_Help(t *testing.T) {
	_, err := LoadConfig([]string{"-h"})
	assert.True(t, errors.Is(err, flag.ErrHelp))
}
