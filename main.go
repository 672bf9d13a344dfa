package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/squall/logging"
)

var rootCmd = &cobra.Command{
	Use:   "squall",
	Short: "Squall simulates a periodic 2D wind field under diffusion and forcing",
	Long: `Squall steps a two-component wind field on a periodic grid: each step diffuses
the field, adds the rotating-fan wind, a travelling swell and a short Gaussian
impulse, and records the turbulent energy sum(u^2 + v^2).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to config.yaml (empty = use defaults)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", logging.FormatJSON, "Log format: json (stdout) or text (stderr)")

	rootCmd.AddCommand(newRunCmd(), newValidateCmd())
}

// setupLogging installs the process-wide slog logger from the persistent flags.
func setupLogging(cmd *cobra.Command) error {
	levelStr, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	level, err := logging.ParseLevel(levelStr)
	if err != nil {
		return err
	}
	logger, err := logging.New(level, format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
