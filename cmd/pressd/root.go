package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pressassist/pressd"
)

var (
	verbose    bool
	dataDir    string
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pressd",
	Short: "Flat-file CMS backend: one atomic JSON document, safe across workers",
	Long: `pressd manages the pressassist site document: a single JSON file holding
pages, blocks, navigation, settings, uploads, sessions and security state.
All writes go through a cross-process lock and an atomic replace, so any
number of worker processes can share the same data directory.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data", "d", "", "Data directory (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "pressd.yaml", "Config file path")
}

// service wires a pressd service from config file, environment and flags.
func service() (*pressd.Service, error) {
	cfg, err := pressd.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return pressd.NewFromConfig(cfg)
}
