package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/tripsync/internal/app"
	"github.com/MrSnakeDoc/tripsync/internal/config"
	"github.com/MrSnakeDoc/tripsync/internal/logger"
)

// loadConfig turns config panics into a command error.
func loadConfig() (cfg *config.Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewExitError(ExitCommandError, fmt.Sprint(r))
		}
	}()
	return config.Load(), nil
}

// openApp builds the app for one command. Without --verbose only errors
// are logged so that output stays readable.
func openApp(cmd *cobra.Command, opts *RootOptions) (*app.App, logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	level := "error"
	if opts.Verbose {
		level = cfg.LogLevel
	}
	log := logger.New(level, cfg.PrettyLog)

	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to start", err)
	}
	return a, log, nil
}

// withApp runs fn against a hydrated app and closes it afterwards.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app.App) error) error {
	a, log, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer func() {
		a.Close()
		_ = log.Sync()
	}()

	ctx := cmd.Context()
	if err := a.Load(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to read local store", err)
	}
	return fn(ctx, a)
}
