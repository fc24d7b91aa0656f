package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gofolio/internal/config"
	"gofolio/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "gofolio",
	Short:         "Portfolio site backend",
	Long:          `gofolio serves portfolio content (projects, blog posts, other works, videos), the contact and meeting forms, and the admin API that manages them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c",
		config.GetConfigPath("config.yml"), "path to the YAML config file")

	rootCmd.AddCommand(serveCmd, seedCmd, statsCmd)
}

// loadConfig reads the config file and builds the process logger.
func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, log.With(logger.String("service", "gofolio")), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
