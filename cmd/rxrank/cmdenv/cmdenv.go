// Package cmdenv resolves the configuration and logger shared by rxrank
// commands.
package cmdenv

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/rxrank/pkg/cliui"
	"github.com/papercomputeco/rxrank/pkg/config"
	"github.com/papercomputeco/rxrank/pkg/logger"
)

// Load materializes the Config for cmd from defaults, config.toml, RXRANK_*
// environment variables and the registered flags named by keys.
func Load(cmd *cobra.Command, keys []string) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, config.Flags, keys)

	return config.FromViper(v), nil
}

// Logger builds the logger for cmd. Console records go to stderr as JSON when
// log.json is set, pretty on a terminal and text otherwise. When log.file is
// set, JSON records are also appended to that file and the returned close
// func must be called.
func Logger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, func() error, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	w := cmd.ErrOrStderr()

	format := logger.FormatText
	switch {
	case cfg.Log.JSON:
		format = logger.FormatJSON
	case cliui.IsTerminal(w):
		format = logger.FormatPretty
	}
	console := logger.New(
		logger.WithDebug(debug),
		logger.WithFormat(format),
		logger.WithWriter(w),
	)

	if cfg.Log.File == "" {
		return console, func() error { return nil }, nil
	}

	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logger.New(
		logger.WithDebug(debug),
		logger.WithFormat(logger.FormatJSON),
		logger.WithWriter(f),
		logger.WithSource(debug),
	)

	return logger.Tee(console, file), f.Close, nil
}
