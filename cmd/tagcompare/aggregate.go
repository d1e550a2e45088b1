package main

import (
	"fmt"
	"os"

	"github.com/jonathan/tagcompare/internal/observability"
	"github.com/jonathan/tagcompare/internal/output"
	"github.com/spf13/cobra"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Fold every run build into the canonical build",
	Long: `Copies captures from every run build under the output directory into the canonical
"default" build. Files already in the canonical build are kept, so the earliest
capture of each tag wins and running it again changes nothing.`,
	RunE: runAggregate,
}

var aggregateOut string

func init() {
	aggregateCmd.Flags().StringVarP(&aggregateOut, "out", "o", "", "Output directory holding the builds (default from settings)")
	rootCmd.AddCommand(aggregateCmd)
}

func runAggregate(_ *cobra.Command, _ []string) error {
	dir := aggregateOut
	if dir == "" {
		s, err := loadSettings()
		if err != nil {
			return err
		}
		dir = s.OutputDir
	}

	canonical, stats, err := output.AggregateWithStats(dir)
	if err != nil {
		return fmt.Errorf("failed to aggregate builds: %w", err)
	}

	observability.NewPrinter(os.Stdout).PrintAggregate(stats)
	_, _ = fmt.Fprintf(os.Stdout, "Canonical build: %s\n", canonical)
	return nil
}
