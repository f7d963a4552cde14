package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/deployd/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "deployd",
	Short: "deployd spawns, supervises and kills task deployments",
	Long: `deployd manages deployments: named groups of tasks that run together as one
process, either inside deployd or as an external command.`,
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
	rootCmd.PersistentFlags().String("config", "", "Configuration file (default "+config.DefaultPath+" if present)")
	rootCmd.PersistentFlags().String("dir", "", "Directory containing the deployment models (overrides models_dir)")
	rootCmd.PersistentFlags().Bool("debug", false, "Turn debugging output on")
}

// loadConfig reads the configuration file and applies the persistent flags.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}

	if cmd.Flags().Changed("dir") {
		cfg.ModelsDir, _ = cmd.Flags().GetString("dir")
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Log.Debug = true
	}

	logger := cfg.Log.Logger()
	slog.SetDefault(logger)
	return cfg, logger, nil
}
