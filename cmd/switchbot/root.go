package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/switchbot/internal/config"
	"github.com/aretw0/switchbot/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "switchbot",
	Short: "Switchbot drives a game console through a microcontroller",
	Long: `Switchbot runs automation programs against a console connected through a
serial controller and a capture card, and lets browsers watch and steer them
over a WebSocket connection.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}

// loadConfig reads the configuration file and applies command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if f := cmd.Flags().Lookup("host"); f != nil && f.Changed {
		cfg.Server.Host = f.Value.String()
	}
	if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
		port, _ := cmd.Flags().GetInt("port")
		cfg.Server.Port = port
	}
	if f := cmd.Flags().Lookup("serial"); f != nil && f.Changed {
		cfg.Serial.Port = f.Value.String()
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config) *slog.Logger {
	return slog.New(logging.NewHandler(os.Stderr, logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format))
}
