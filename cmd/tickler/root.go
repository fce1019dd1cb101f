package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/tickler/internal/cli"
	"github.com/aretw0/tickler/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tickler",
	Short: "Tickler turns free-form text into calendar reminders",
	Long: `Tickler sends text such as an email or a note to a language model, extracts
the appointments it mentions and mails a calendar invitation for each one.`,
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
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Override the log level (debug, info, warn, error)")
}

// loadApp reads configuration and wires the engine for a command.
func loadApp(cmd *cobra.Command) (config.Config, *cli.App, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return cfg, nil, err
	}
	app, err := cli.Build(cmd.Context(), cfg, logger)
	return cfg, app, err
}

func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	level, _ := cmd.Flags().GetString("log-level")

	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	logger, err := cli.CreateLogger(cfg.Log, level)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, logger, nil
}

func closeApp(app *cli.App) {
	if err := app.Close(context.Background()); err != nil {
		app.Logger.Warn("Shutdown incomplete", "error", err)
	}
}
