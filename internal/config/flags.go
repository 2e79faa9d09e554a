package config

import (
	"flag"
	"os"
)

func ParseFlags(base Config) Config {
	return ParseFlagSet(flag.CommandLine, nil, base)
}

// ParseFlagSet is ParseFlags over an explicit flag set and argument list. A
// nil args slice parses os.Args.
func ParseFlagSet(flags *flag.FlagSet, args []string, base Config) Config {
	baseURL := flags.String("url", base.BaseURL, "Dashboard backend base URL")
	token := flags.String("token", base.Token, "Bearer token for the backend")
	dataDir := flags.String("data-dir", base.DataDir, "Serve scans from a local data directory instead of a backend")
	theme := flags.String("theme", base.Theme, "Color theme (dark or light)")
	dryRun := flags.Bool("dry-run", base.DryRun, "Ask the backend for a dry-run cleanup")
	logFile := flags.String("log-file", base.LogFile, "Write logs to this file")
	logLevel := flags.String("log-level", base.LogLevel, "Log level (debug, info, warn, error)")
	if args == nil {
		args = os.Args[1:]
	}
	_ = flags.Parse(args)

	base.BaseURL = *baseURL
	base.Token = *token
	base.DataDir = *dataDir
	base.Theme = *theme
	base.DryRun = *dryRun
	base.LogFile = *logFile
	base.LogLevel = *logLevel
	return base
}
