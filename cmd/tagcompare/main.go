// Package main provides the tagcompare CLI, which captures ad tags in
// several browsers and reports visual differences between them.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/jonathan/tagcompare/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tagcompare",
	Short: "Visual regression testing for ad tags",
	Long: `tagcompare captures PlaceLocal ad tags across browser configurations, folds the
captures into a canonical build and reports how different the renderings are.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

var (
	settingsPath      string
	compareConfigPath string
	verbose           bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", config.DefaultSettingsFile, "Path to settings.json (settings.local.json next to it takes precedence)")
	rootCmd.PersistentFlags().StringVar(&compareConfigPath, "compare-config", config.DefaultCompareFile, "Path to compare.json with configs and comparison groups")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func setupLogging(_ *cobra.Command, _ []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
