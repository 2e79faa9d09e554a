package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	configDirName  = "spacesweep"
	configFileName = "config.json"
)

func DefaultConfig() Config {
	return Config{
		BaseURL:           "http://localhost:6185",
		Theme:             "dark",
		EnableTimeFilter:  false,
		BeforeDays:        7,
		PollInterval:      time.Second,
		PollErrorInterval: 2 * time.Second,
		MaxPollErrors:     0,
		RequestsPerSecond: 5,
		RequestTimeout:    30 * time.Second,
		ResultCacheTTL:    5 * time.Minute,
		LogLevel:          "info",
	}
}

func ConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, configDirName, configFileName), nil
}

func LoadConfig() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadConfigFrom(path)
}

func LoadConfigFrom(path string) (Config, error) {
	config := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, err
	}
	var stored fileConfig
	if err := json.Unmarshal(data, &stored); err != nil {
		return config, err
	}
	return mergeConfig(config, stored)
}

func SaveConfig(config Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveConfigTo(path, config)
}

func SaveConfigTo(path string, config Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(toFileConfig(config), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

var validate = validator.New()

// Validate checks the merged configuration and reports every offending field.
func Validate(config Config) error {
	if config.DataDir == "" && config.BaseURL == "" {
		return errors.New("invalid config: BaseURL is required without a data directory")
	}
	err := validate.Struct(config)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	problems := make([]string, 0, len(fieldErrors))
	for _, fieldErr := range fieldErrors {
		problems = append(problems, fmt.Sprintf("%s failed %q", fieldErr.Field(), fieldErr.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, ", "))
}

func mergeConfig(base Config, stored fileConfig) (Config, error) {
	merged := base
	if stored.BaseURL != nil {
		merged.BaseURL = *stored.BaseURL
	}
	if stored.Token != nil {
		merged.Token = *stored.Token
	}
	if stored.DataDir != nil {
		merged.DataDir = *stored.DataDir
	}
	if stored.Theme != nil {
		merged.Theme = *stored.Theme
	}
	if stored.EnableTimeFilter != nil {
		merged.EnableTimeFilter = *stored.EnableTimeFilter
	}
	if stored.BeforeDays != nil {
		merged.BeforeDays = *stored.BeforeDays
	}
	if stored.DryRun != nil {
		merged.DryRun = *stored.DryRun
	}
	if stored.MaxPollErrors != nil {
		merged.MaxPollErrors = *stored.MaxPollErrors
	}
	if stored.RequestsPerSecond != nil {
		merged.RequestsPerSecond = *stored.RequestsPerSecond
	}
	if stored.LogFile != nil {
		merged.LogFile = *stored.LogFile
	}
	if stored.LogLevel != nil {
		merged.LogLevel = *stored.LogLevel
	}
	durations := []struct {
		value  *string
		target *time.Duration
		name   string
	}{
		{stored.PollInterval, &merged.PollInterval, "pollInterval"},
		{stored.PollErrorInterval, &merged.PollErrorInterval, "pollErrorInterval"},
		{stored.RequestTimeout, &merged.RequestTimeout, "requestTimeout"},
		{stored.ResultCacheTTL, &merged.ResultCacheTTL, "resultCacheTtl"},
	}
	for _, duration := range durations {
		if duration.value == nil {
			continue
		}
		parsed, err := time.ParseDuration(*duration.value)
		if err != nil {
			return base, fmt.Errorf("%s: %w", duration.name, err)
		}
		*duration.target = parsed
	}
	return merged, nil
}

func toFileConfig(config Config) fileConfig {
	pollInterval := config.PollInterval.String()
	pollErrorInterval := config.PollErrorInterval.String()
	requestTimeout := config.RequestTimeout.String()
	resultCacheTTL := config.ResultCacheTTL.String()
	stored := fileConfig{
		BaseURL:           &config.BaseURL,
		Theme:             &config.Theme,
		EnableTimeFilter:  &config.EnableTimeFilter,
		BeforeDays:        &config.BeforeDays,
		DryRun:            &config.DryRun,
		PollInterval:      &pollInterval,
		PollErrorInterval: &pollErrorInterval,
		MaxPollErrors:     &config.MaxPollErrors,
		RequestsPerSecond: &config.RequestsPerSecond,
		RequestTimeout:    &requestTimeout,
		ResultCacheTTL:    &resultCacheTTL,
		LogLevel:          &config.LogLevel,
	}
	if config.Token != "" {
		stored.Token = &config.Token
	}
	if config.LogFile != "" {
		stored.LogFile = &config.LogFile
	}
	if config.DataDir != "" {
		stored.DataDir = &config.DataDir
	}
	return stored
}
