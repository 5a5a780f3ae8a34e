package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foldsync/foldsync/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	assert.NotEmpty(t, cfg.API.BaseURL)
	assert.Positive(t, cfg.API.Timeout)
	assert.Equal(t, 50, cfg.Sync.LocalRetryAttempts)
	assert.Positive(t, cfg.Sync.EchoWindow)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr string
	}{
		{
			name:    "valid config",
			modify:  func(c *config.Config) {},
			wantErr: "",
		},
		{
			name: "missing base URL",
			modify: func(c *config.Config) {
				c.API.BaseURL = ""
			},
			wantErr: "api.base_url is required",
		},
		{
			name: "negative timeout",
			modify: func(c *config.Config) {
				c.API.Timeout = -1
			},
			wantErr: "api.timeout must be positive",
		},
		{
			name: "negative retry ceiling",
			modify: func(c *config.Config) {
				c.Sync.LocalRetryAttempts = -1
			},
			wantErr: "sync.local_retry_attempts cannot be negative",
		},
		{
			name: "zero echo window",
			modify: func(c *config.Config) {
				c.Sync.EchoWindow = 0
			},
			wantErr: "sync.echo_window must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.EqualError(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoaderFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foldsync.json")

	data := `{
		"api": {
			"base_url": "https://files.example.test/api/FileTransfer",
			"timeout": 10000000000
		},
		"sync": {
			"local_retry_attempts": 10
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	t.Setenv("FOLDSYNC_LOCAL_RETRY_ATTEMPTS", "7")
	t.Setenv("FOLDSYNC_LOG_LEVEL", "DEBUG")

	cfg, err := config.NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "https://files.example.test/api/FileTransfer", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 7, cfg.Sync.LocalRetryAttempts, "environment wins over file")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5*time.Second, cfg.Sync.EchoWindow, "defaults survive partial files")
}

func TestLoaderMissingFileFails(t *testing.T) {
	_, err := config.NewLoader("/does/not/exist.json").Load()
	assert.Error(t, err)
}

func TestLoaderBadEnvValue(t *testing.T) {
	t.Setenv("FOLDSYNC_API_TIMEOUT", "not a duration")

	_, err := config.NewLoader("").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_TIMEOUT")
}
