package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/jonathan/tagcompare/internal/capture"
	"github.com/jonathan/tagcompare/internal/config"
	"github.com/jonathan/tagcompare/internal/observability"
	"github.com/jonathan/tagcompare/internal/output"
	"github.com/jonathan/tagcompare/internal/placelocal"
	"github.com/spf13/cobra"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture campaign tags in every config, then compare them",
	Long: `Fetches the tags of the given campaigns (or the active campaigns of the given
publishers) from PlaceLocal, renders each tag in every enabled config of the
comparison groups and screenshots it into a new run build. Tags the canonical
build already has are skipped. Unless --capture-only is set, the run build is
then aggregated and every comparison group is compared.`,
	RunE: runCapture,
}

var (
	captureCampaigns   []string
	capturePublishers  []string
	captureDomain      string
	captureConfigs     []string
	captureBuild       string
	captureOnly        bool
	captureExisting    bool
	captureDryRun      bool
	captureMetricsAddr string
	captureTimeout     time.Duration
)

func init() {
	captureCmd.Flags().StringSliceVarP(&captureCampaigns, "campaigns", "c", nil, "Campaign IDs to capture (default from settings)")
	captureCmd.Flags().StringSliceVarP(&capturePublishers, "publishers", "p", nil, "Publisher IDs whose active campaigns are captured")
	captureCmd.Flags().StringVarP(&captureDomain, "domain", "d", "", "PlaceLocal domain, e.g. www.placelocal.com (default from settings)")
	captureCmd.Flags().StringSliceVar(&captureConfigs, "configs", nil, "Configs to capture with (default: every enabled config used by a comparison group)")
	captureCmd.Flags().StringVarP(&captureBuild, "build", "b", "", "Name of the run build (default: current timestamp)")
	captureCmd.Flags().BoolVar(&captureOnly, "capture-only", false, "Run capture only without compare")
	captureCmd.Flags().BoolVar(&captureExisting, "capture-existing", false, "Recapture tags the canonical build already has")
	captureCmd.Flags().BoolVar(&captureDryRun, "dry-run", false, "Compare without writing diagnostic images")
	captureCmd.Flags().StringVar(&captureMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	captureCmd.Flags().DurationVar(&captureTimeout, "timeout", capture.DefaultTimeout, "Timeout of a single tag capture")

	captureCmd.MarkFlagsMutuallyExclusive("campaigns", "publishers")

	rootCmd.AddCommand(captureCmd)
}

// selectConfigs returns the named configs, or every enabled config used by a
// comparison group.
func selectConfigs(cs *config.CompareSet, names []string) (map[string]config.BrowserConfig, error) {
	if len(names) == 0 {
		inGroups := cs.ConfigsInComparisons()
		for _, name := range cs.EnabledConfigs() {
			if slices.Contains(inGroups, name) {
				names = append(names, name)
			}
		}
	}
	selected := make(map[string]config.BrowserConfig, len(names))
	for _, name := range names {
		cfg, ok := cs.Configs[name]
		if !ok {
			return nil, fmt.Errorf("unknown config %q", name)
		}
		selected[name] = cfg
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no enabled configs to capture with")
	}
	return selected, nil
}

func runCapture(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	s, err := loadSettings()
	if err != nil {
		return err
	}
	cs, err := loadCompareSet()
	if err != nil {
		return err
	}
	configs, err := selectConfigs(cs, captureConfigs)
	if err != nil {
		return err
	}

	domain := s.Domain
	if captureDomain != "" {
		domain = captureDomain
	}
	cids := []string(s.Campaigns)
	pids := []string(s.Publishers)
	if len(captureCampaigns) > 0 || len(capturePublishers) > 0 {
		cids, pids = captureCampaigns, capturePublishers
	}

	client := placelocal.NewClient(domain, &placelocal.Options{
		APIKey:        s.PlaceLocal.APIKey,
		AnimationTime: s.PlaceLocal.AnimationTime,
	})
	cids, err = client.CampaignIDs(ctx, cids, pids)
	if err != nil {
		return fmt.Errorf("failed to resolve campaigns: %w", err)
	}
	tags, err := client.GetTagsForCampaigns(ctx, cids)
	if err != nil {
		slog.Warn("some campaigns have no tags", "error", err)
	}
	if len(tags) == 0 {
		return fmt.Errorf("no tags found for campaigns %v on %s", cids, domain)
	}

	printer := observability.NewPrinter(os.Stdout)
	if err := os.MkdirAll(s.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	// fold earlier runs in first so their captures are skipped
	if _, stats, err := output.AggregateWithStats(s.OutputDir); err != nil {
		return fmt.Errorf("failed to aggregate builds: %w", err)
	} else if stats.Copied > 0 {
		printer.PrintAggregate(stats)
	}

	metrics, stopMetrics, err := startMetrics(ctx, captureMetricsAddr)
	if err != nil {
		return err
	}
	defer stopMetrics()

	build := captureBuild
	if build == "" {
		build = output.NewBuildName(time.Now())
	}
	manager := &capture.Manager{
		BaseDir:         s.OutputDir,
		Sizes:           s.TagSizes,
		Types:           s.TagTypes,
		CaptureExisting: captureExisting,
		NewCapturer:     capture.BrowserFactory(capture.BrowserOptions{Timeout: captureTimeout}),
	}
	slog.Info("capturing tags", "build", build, "campaigns", len(tags), "configs", len(configs), "domain", domain)
	stats, err := manager.CaptureAll(ctx, tags, build, configs)
	printer.PrintCaptureStats(build, stats)
	if metrics != nil {
		metrics.RecordCaptures(ctx, "all", observability.OutcomeCaptured, stats.Captured)
		metrics.RecordCaptures(ctx, "all", observability.OutcomeSkipped, stats.Skipped)
		metrics.RecordCaptures(ctx, "all", observability.OutcomeFailed, stats.Failed)
	}
	if stats.Captured == 0 && build != output.DefaultBuild {
		// nothing new, drop the empty run build
		if rmErr := output.New(s.OutputDir, output.Fields{Build: build}).RemoveBuild(); rmErr != nil {
			slog.Warn("failed to remove empty build", "build", build, "error", rmErr)
		}
	}
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	if captureOnly {
		return nil
	}

	if _, _, err := output.AggregateWithStats(s.OutputDir); err != nil {
		return fmt.Errorf("failed to aggregate builds: %w", err)
	}

	store := openStore(ctx, s.DatabaseURL)
	if store != nil {
		defer store.Close()
	}
	jobs, err := comparison{
		settings:  s,
		set:       cs,
		campaigns: cids,
		dryRun:    captureDryRun,
		metrics:   metrics,
	}.run(ctx)
	for _, job := range jobs {
		printer.PrintJob(job)
		saveJob(ctx, store, job)
	}
	return err
}
