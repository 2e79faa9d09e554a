package app

import (
	"fmt"
	"log/slog"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"

	"spacesweep/internal/cleanup"
	"spacesweep/internal/config"
	"spacesweep/internal/logging"
	"spacesweep/internal/services"
	"spacesweep/internal/state"
	"spacesweep/internal/ui"
)

// Run loads configuration, wires the backend and runs the cleanup page until
// the user quits.
func Run() error {
	base := config.DefaultConfig()
	loaded, loadErr := config.LoadConfig()
	if loadErr == nil {
		base = loaded
	}
	cfg := config.ParseFlags(base)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer closer.Close()
	if loadErr != nil {
		logger.Warn("config load failed, using defaults", slog.Any("err", loadErr))
	}

	api, shutdown, err := newBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer shutdown()

	cache := services.NewResultCache(api, cfg.ResultCacheTTL)
	coordinator := cleanup.New(api, cache, cleanup.Options{
		PollInterval:      cfg.PollInterval,
		PollErrorInterval: cfg.PollErrorInterval,
		MaxPollErrors:     cfg.MaxPollErrors,
		Logger:            logger,
	})
	defer coordinator.Close()

	model := ui.NewModel(state.NewState(cfg), coordinator)
	if loadErr != nil {
		model = model.WithStatus("Config warning: using defaults")
	}
	program := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := program.Run()
	if err != nil {
		return err
	}
	if provider, ok := finalModel.(ui.ConfigProvider); ok {
		if err := config.SaveConfig(changedPreferences(base, cfg, provider.ConfigSnapshot(cfg))); err != nil {
			logger.Warn("config save failed", slog.Any("err", err))
			return fmt.Errorf("save config: %w", err)
		}
	}
	hits, misses := cache.Stats()
	logger.Info("exiting", slog.Uint64("cache_hits", hits), slog.Uint64("cache_misses", misses))
	return nil
}

// changedPreferences writes into stored only the page preferences the user
// changed during the session. Values that came from flags and were left alone
// are one-off overrides and stay out of the config file.
func changedPreferences(stored, started, final config.Config) config.Config {
	if final.Theme != started.Theme {
		stored.Theme = final.Theme
	}
	if final.EnableTimeFilter != started.EnableTimeFilter {
		stored.EnableTimeFilter = final.EnableTimeFilter
	}
	if final.BeforeDays != started.BeforeDays {
		stored.BeforeDays = final.BeforeDays
	}
	if final.DryRun != started.DryRun {
		stored.DryRun = final.DryRun
	}
	return stored
}

// newBackend picks the local backend when a data directory is configured and
// the HTTP client otherwise.
func newBackend(cfg config.Config, logger *slog.Logger) (services.SpaceAPI, func(), error) {
	if cfg.DataDir != "" {
		backend, err := services.NewLocalBackend(cfg.DataDir, services.WithLocalLogger(logger))
		if err != nil {
			return nil, nil, fmt.Errorf("open data dir: %w", err)
		}
		logger.Info("using local backend", slog.String("dir", cfg.DataDir))
		return backend, func() { _ = backend.Close() }, nil
	}

	client, err := services.NewHTTPClient(cfg.BaseURL,
		services.WithToken(cfg.Token),
		services.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}),
		services.WithRateLimit(cfg.RequestsPerSecond, maxBurst(cfg.RequestsPerSecond)),
		services.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using backend", slog.String("url", cfg.BaseURL))
	return client, func() {}, nil
}

func maxBurst(rps float64) int {
	if rps < 1 {
		return 1
	}
	return int(rps)
}
