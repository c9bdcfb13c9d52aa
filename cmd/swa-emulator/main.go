package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dzerik/swa-emulator/internal/config"
	"github.com/dzerik/swa-emulator/internal/service/metrics"
	"github.com/dzerik/swa-emulator/internal/service/security"
	"github.com/dzerik/swa-emulator/internal/swaconfig"
	"github.com/dzerik/swa-emulator/pkg/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application entry point with proper error handling.
func run() error {
	opts := parseFlags()

	if handled, err := handleInfoCommands(opts); handled {
		return err
	}

	cfg, err := loadAndValidateConfig(opts.configPath)
	if err != nil {
		return err
	}

	if err := initLogger(cfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting swa-emulator",
		zap.String("version", Version),
		zap.String("settings", opts.configPath),
		zap.String("origin", cfg.PublicOrigin()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runServer(ctx, cfg)
}

// initLogger initializes the logger from the log section.
func initLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Log.Development,
		File: logger.FileConfig{
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
}

// loadAndValidateConfig loads and validates the emulator settings.
func loadAndValidateConfig(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// checkSecurity checks for security issues and logs warnings.
func checkSecurity(cfg *config.Config, site *swaconfig.Config) []security.Warning {
	warnings := security.NewChecker(cfg, site).Check()

	if len(warnings) == 0 {
		logger.Debug("security check passed - no issues found")
		return nil
	}

	logger.Warn("security issues detected in configuration",
		zap.Int("total_warnings", len(warnings)),
		zap.String("summary", security.FormatSummary(warnings)),
	)
	for _, w := range warnings {
		logFunc := logger.Warn
		if w.Severity == security.SeverityLow {
			logFunc = logger.Info
		}
		logFunc("security warning",
			zap.String("code", w.Code),
			zap.String("severity", string(w.Severity)),
			zap.String("title", w.Title),
			zap.String("section", w.Section),
			zap.String("recommendation", w.Recommendation),
		)
	}
	return warnings
}

// runServer builds the emulator and blocks until ctx is cancelled.
func runServer(ctx context.Context, cfg *config.Config) error {
	var m *metrics.Metrics
	if cfg.Observability.Metrics.Enabled {
		m = metrics.New()
	}

	tp := initTracing(cfg)

	a, err := newApp(ctx, cfg, m, tp)
	if err != nil {
		logger.Error("failed to create server", zap.Error(err))
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer a.close()

	return a.run(ctx)
}
