package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jonathan/tagcompare/internal/compare"
	"github.com/jonathan/tagcompare/internal/config"
	"github.com/jonathan/tagcompare/internal/observability"
	"github.com/jonathan/tagcompare/internal/output"
	"github.com/jonathan/tagcompare/internal/severity"
	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare captured tags across configs and report severities",
	Long: `Aggregates run builds into the canonical build, then compares every campaign, size
and tag type of the selected comparison groups. With --reference, the configs of
--build are compared against the canonical build instead.`,
	RunE: runCompare,
}

var (
	compareGroup       string
	compareAll         bool
	compareBuild       string
	compareReference   bool
	compareCampaigns   []string
	compareDryRun      bool
	compareWorkers     int
	compareGreyscale   bool
	compareMetricsAddr string
	compareNoAggregate bool
	compareFailOn      string
)

func init() {
	compareCmd.Flags().StringVarP(&compareGroup, "group", "g", "", "Comparison group from compare.json to run")
	compareCmd.Flags().BoolVar(&compareAll, "all", false, "Run every comparison group (default when --group is not set)")
	compareCmd.Flags().StringVarP(&compareBuild, "build", "b", "", "Run build to compare against the canonical build (with --reference)")
	compareCmd.Flags().BoolVar(&compareReference, "reference", false, "Compare --build against the canonical build instead of configs against each other")
	compareCmd.Flags().StringSliceVarP(&compareCampaigns, "campaigns", "c", nil, "Campaign IDs to compare (default: settings, then every captured campaign)")
	compareCmd.Flags().BoolVar(&compareDryRun, "dry-run", false, "Classify without writing diagnostic images")
	compareCmd.Flags().IntVarP(&compareWorkers, "workers", "w", 0, "Number of concurrent comparisons (default from settings)")
	compareCmd.Flags().BoolVar(&compareGreyscale, "greyscale", false, "Compare greyscale histograms")
	compareCmd.Flags().StringVar(&compareMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	compareCmd.Flags().BoolVar(&compareNoAggregate, "no-aggregate", false, "Skip folding run builds into the canonical build")
	compareCmd.Flags().StringVar(&compareFailOn, "fail-on", "", "Exit with an error if any unit is at this severity or worse (none, slight, moderate, severe)")

	compareCmd.MarkFlagsMutuallyExclusive("group", "all")

	rootCmd.AddCommand(compareCmd)
}

// comparison describes one invocation of the comparer.
type comparison struct {
	settings  config.Settings
	set       *config.CompareSet
	group     string
	build     string
	reference bool
	campaigns []string
	dryRun    bool
	workers   int
	greyscale bool
	metrics   *observability.Metrics
}

func (c comparison) options() compare.Options {
	opts := compare.Options{
		BaseDir:    c.settings.OutputDir,
		Build:      c.build,
		Campaigns:  c.campaigns,
		Sizes:      c.settings.TagSizes,
		Types:      c.settings.TagTypes,
		Workers:    c.settings.Workers,
		Opacity:    c.settings.Opacity,
		Greyscale:  c.settings.Greyscale || c.greyscale,
		DryRun:     c.dryRun,
		Thresholds: c.settings.Thresholds,
	}
	if c.workers > 0 {
		opts.Workers = c.workers
	}
	if len(opts.Campaigns) == 0 {
		opts.Campaigns = []string(c.settings.Campaigns)
	}
	if c.reference {
		opts.Mode = compare.ModeReference
	}
	opts.OnUnit = func(u compare.UnitResult) {
		slog.Debug("compared unit",
			"campaign", u.Campaign, "size", u.Size, "type", u.Type,
			"level", u.Level, "score", float64(u.Score), "elapsed", u.Elapsed)
	}
	return opts
}

// run executes the comparison and returns the finished jobs.
func (c comparison) run(ctx context.Context) ([]*compare.Job, error) {
	comparer := compare.NewComparer(nil, recorder(c.metrics))
	opts := c.options()

	if c.reference {
		configs := c.set.ConfigsInComparisons()
		if c.group != "" {
			group, err := c.set.Group(c.group)
			if err != nil {
				return nil, err
			}
			configs = group
		}
		opts.Group = c.group
		opts.Configs = configs
		job, err := comparer.Run(ctx, opts)
		if job == nil {
			return nil, err
		}
		return []*compare.Job{job}, err
	}

	groups := c.set.Comparisons
	if c.group != "" {
		configs, err := c.set.Group(c.group)
		if err != nil {
			return nil, err
		}
		groups = map[string][]string{c.group: configs}
	}
	return comparer.CompareGroups(ctx, opts, groups)
}

func runCompare(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	var failOn severity.Level
	if compareFailOn != "" {
		level, err := severity.ParseLevel(compareFailOn)
		if err != nil {
			return fmt.Errorf("invalid --fail-on: %w", err)
		}
		if level == severity.Invalid {
			return fmt.Errorf("invalid --fail-on: %q is not a regression level, use none, slight, moderate or severe", compareFailOn)
		}
		failOn = level
	}
	if compareReference && compareBuild == "" {
		return fmt.Errorf("--reference requires --build")
	}

	s, err := loadSettings()
	if err != nil {
		return err
	}
	cs, err := loadCompareSet()
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(os.Stdout)
	if !compareNoAggregate {
		_, stats, err := output.AggregateWithStats(s.OutputDir)
		if err != nil {
			return fmt.Errorf("failed to aggregate builds: %w", err)
		}
		printer.PrintAggregate(stats)
	}

	metrics, stopMetrics, err := startMetrics(ctx, compareMetricsAddr)
	if err != nil {
		return err
	}
	defer stopMetrics()

	store := openStore(ctx, s.DatabaseURL)
	if store != nil {
		defer store.Close()
	}

	jobs, runErr := comparison{
		settings:  s,
		set:       cs,
		group:     compareGroup,
		build:     compareBuild,
		reference: compareReference,
		campaigns: compareCampaigns,
		dryRun:    compareDryRun,
		workers:   compareWorkers,
		greyscale: compareGreyscale,
		metrics:   metrics,
	}.run(ctx)

	regressions := 0
	for _, job := range jobs {
		printer.PrintJob(job)
		saveJob(ctx, store, job)
		if failOn > severity.Invalid {
			regressions += job.Result.AtLeast(failOn)
		}
	}
	if runErr != nil {
		return runErr
	}
	if regressions > 0 {
		return fmt.Errorf("%d units at %s or worse", regressions, failOn)
	}
	return nil
}
