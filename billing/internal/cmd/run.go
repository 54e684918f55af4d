package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mealplanpro/mealplan/billing/internal/config"
	"github.com/mealplanpro/mealplan/billing/internal/server"
)

const defaultConfigPath = "mealplan-billing.json"

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run [config-file]",
		Short: "Start the billing service (default when no subcommand is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRun,
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, configPath, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging, os.Stdout)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize billing service: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("mealplan billing starting", "version", version, "config", configPath)

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("billing service: %w", err)
	}

	logger.Info("billing service stopped")
	return nil
}

// loadConfig resolves and loads the configuration. A missing default config
// file is not an error: the service can run from environment variables alone.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, string, error) {
	return loadWith(config.Load, cmd, args)
}

// loadRazorpayConfig is loadConfig for commands that only talk to Razorpay.
func loadRazorpayConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, _, err := loadWith(config.LoadRazorpay, cmd, nil)
	return cfg, err
}

func loadWith(load func(string) (*config.Config, error), cmd *cobra.Command, args []string) (*config.Config, string, error) {
	configPath := resolveConfigPath(cmd, args, defaultConfigPath)
	if configPath == defaultConfigPath {
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
			configPath = ""
		}
	}

	cfg, err := load(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("error: %w", err)
	}
	return cfg, configPath, nil
}

func newLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// resolveConfigPath returns the config file path from (in priority order):
// 1. Positional argument
// 2. --config / -c flag
// 3. Default value
func resolveConfigPath(cmd *cobra.Command, args []string, defaultPath string) string {
	if len(args) > 0 {
		return args[0]
	}
	if f := cmd.Flag("config"); f != nil && f.Changed {
		return f.Value.String()
	}
	if f := cmd.Root().PersistentFlags().Lookup("config"); f != nil && f.Changed {
		return f.Value.String()
	}
	return defaultPath
}
