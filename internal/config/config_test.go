package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfigFrom(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigMergesStoredValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"baseUrl":"https://bot.example.com","theme":"light","beforeDays":30,"pollInterval":"500ms"}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "https://bot.example.com", cfg.BaseURL)
	assert.Equal(t, "light", cfg.Theme)
	assert.Equal(t, 30, cfg.BeforeDays)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.PollErrorInterval)
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pollInterval":"soon"}`), 0o600))

	_, err := LoadConfigFrom(path)
	assert.ErrorContains(t, err, "pollInterval")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Token = "secret"
	cfg.EnableTimeFilter = true
	cfg.ResultCacheTTL = time.Minute

	require.NoError(t, SaveConfigTo(path, cfg))
	loaded, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "data dir needs no url", mutate: func(cfg *Config) { cfg.BaseURL = ""; cfg.DataDir = "/srv/bot/data" }},
		{name: "missing url", mutate: func(cfg *Config) { cfg.BaseURL = "" }, wantErr: "BaseURL"},
		{name: "malformed url", mutate: func(cfg *Config) { cfg.BaseURL = "not a url" }, wantErr: "BaseURL"},
		{name: "unknown theme", mutate: func(cfg *Config) { cfg.Theme = "neon" }, wantErr: "Theme"},
		{name: "zero poll interval", mutate: func(cfg *Config) { cfg.PollInterval = 0 }, wantErr: "PollInterval"},
		{name: "negative days", mutate: func(cfg *Config) { cfg.BeforeDays = -1 }, wantErr: "BeforeDays"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseFlagSetOverridesBase(t *testing.T) {
	flags := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg := ParseFlagSet(flags, []string{"-data-dir", "/srv/bot/data", "-theme", "light", "-dry-run"}, DefaultConfig())

	assert.Equal(t, "/srv/bot/data", cfg.DataDir)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "light", cfg.Theme)
	assert.Equal(t, DefaultConfig().BaseURL, cfg.BaseURL)
}
