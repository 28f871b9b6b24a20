// Package cli implements the central command tree. Every command opens
// the same sync engine the dashboard uses, so what the CLI prints is
// exactly what a dashboard session would see.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bpd-ops/central/backend"
	"github.com/bpd-ops/central/config"
	"github.com/bpd-ops/central/engine"
	"github.com/bpd-ops/central/internal/version"
	"github.com/bpd-ops/central/seed"
	"github.com/bpd-ops/central/signal"
	"github.com/bpd-ops/central/store"
)

var (
	configPath string
	dataDir    string
	localOnly  bool
)

var rootCmd = &cobra.Command{
	Use:     "central",
	Short:   "BPD task dashboard data core",
	Long:    `Central runs the grant-tracking sync engine from the terminal: inspect tasks, dependency state, program heat, and the shared-store connection.`,
	Version: version.Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&localOnly, "local", false, "ignore remote credentials and use the local store")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(heatCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(connectCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn // keep command output clean by default
	if cfg.LogLevel == "debug" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openEngine builds the engine over whichever backend the credential
// resolution picks and runs the full initialize sequence. The returned
// cleanup closes the engine and any local store.
func openEngine(ctx context.Context) (*engine.Engine, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg)

	var (
		b       backend.Backend
		cleanup = func() {}
	)
	remote := config.ResolveRemote(cfg.DataDir, cfg.Remote)
	if !localOnly && remote.URL != "" && remote.Key != "" {
		r, err := backend.NewRemote(backend.RemoteConfig{
			URL:    remote.URL,
			Key:    remote.Key,
			Logger: logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("remote backend: %w", err)
		}
		b = r
	} else {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		st, err := store.Open(filepath.Join(cfg.DataDir, "central.db"))
		if err != nil {
			return nil, nil, fmt.Errorf("open store: %w", err)
		}
		b = backend.NewLocal(st, signal.NewBus())
		cleanup = func() { st.Close() }
	}

	eng := engine.New(b, logger)
	if _, err := eng.Initialize(ctx, seed.Demo()); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("initialize: %w", err)
	}

	engCleanup := func() {
		eng.Close()
		cleanup()
	}
	return eng, engCleanup, nil
}
