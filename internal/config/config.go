package config

import "time"

type Config struct {
	BaseURL           string `validate:"omitempty,url"`
	Token             string
	DataDir           string
	Theme             string `validate:"oneof=dark light"`
	EnableTimeFilter  bool
	BeforeDays        int           `validate:"gte=0,lte=3650"`
	DryRun            bool
	PollInterval      time.Duration `validate:"gt=0"`
	PollErrorInterval time.Duration `validate:"gt=0"`
	MaxPollErrors     int           `validate:"gte=0"`
	RequestsPerSecond float64       `validate:"gt=0"`
	RequestTimeout    time.Duration `validate:"gt=0"`
	ResultCacheTTL    time.Duration `validate:"gte=0"`
	LogFile           string
	LogLevel          string `validate:"oneof=debug info warn error"`
}

type fileConfig struct {
	BaseURL           *string  `json:"baseUrl,omitempty"`
	Token             *string  `json:"token,omitempty"`
	DataDir           *string  `json:"dataDir,omitempty"`
	Theme             *string  `json:"theme,omitempty"`
	EnableTimeFilter  *bool    `json:"enableTimeFilter,omitempty"`
	BeforeDays        *int     `json:"beforeDays,omitempty"`
	DryRun            *bool    `json:"dryRun,omitempty"`
	PollInterval      *string  `json:"pollInterval,omitempty"`
	PollErrorInterval *string  `json:"pollErrorInterval,omitempty"`
	MaxPollErrors     *int     `json:"maxPollErrors,omitempty"`
	RequestsPerSecond *float64 `json:"requestsPerSecond,omitempty"`
	RequestTimeout    *string  `json:"requestTimeout,omitempty"`
	ResultCacheTTL    *string  `json:"resultCacheTtl,omitempty"`
	LogFile           *string  `json:"logFile,omitempty"`
	LogLevel          *string  `json:"logLevel,omitempty"`
}
