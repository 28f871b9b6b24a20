package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bpd-ops/central/backend"
	"github.com/bpd-ops/central/config"
)

var connectCmd = &cobra.Command{
	Use:   "connect <url> <access-key>",
	Short: "Save centrald credentials and verify the connection",
	Args:  cobra.ExactArgs(2),
	RunE:  runConnect,
}

func runConnect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	remote := config.RemoteConfig{URL: args[0], Key: args[1]}
	r, err := backend.NewRemote(backend.RemoteConfig{
		URL:    remote.URL,
		Key:    remote.Key,
		Logger: newLogger(cfg),
	})
	if err != nil {
		return fmt.Errorf("remote backend: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	if err := r.Probe(ctx); err != nil {
		return fmt.Errorf("endpoint unreachable: %w", err)
	}

	if err := config.SaveRemote(cfg.DataDir, remote); err != nil {
		return err
	}
	fmt.Printf("Connected to %s. Credentials saved.\n", remote.URL)
	return nil
}
