// cmd/server/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tahcohcat/monument-narrator/config"
	"github.com/tahcohcat/monument-narrator/internal/logger"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:           "monument-narrator",
		Short:         "Narrate monuments with a premium cloud voice and a device fallback",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./config.yaml)")
	cmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}

		level := logger.ParseLevel(cfg.Logging.Level)
		if debug {
			level = logger.LogLevelDebug
		}
		logger.SetLevel(level)
		return cfg, nil
	}

	cmd.AddCommand(
		newServeCommand(load),
		newSayCommand(load),
		newVoicesCommand(load),
		newCacheCommand(load),
	)

	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.New().WithError(err).Error("command failed")
		os.Exit(1)
	}
}
