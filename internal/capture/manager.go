package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/jonathan/tagcompare/internal/config"
	"github.com/jonathan/tagcompare/internal/output"
	"github.com/jonathan/tagcompare/internal/placelocal"
	"golang.org/x/sync/errgroup"
)

// MaxRemoteJobs bounds the configs captured at the same time.
const MaxRemoteJobs = 6

// Factory creates the Capturer of a config. Capturers that implement
// io.Closer are closed when their config is done.
type Factory func(ctx context.Context, name string, cfg config.BrowserConfig) (Capturer, error)

// BrowserFactory returns a Factory of BrowserCapturers.
func BrowserFactory(opts BrowserOptions) Factory {
	return func(ctx context.Context, name string, cfg config.BrowserConfig) (Capturer, error) {
		return NewBrowserCapturer(ctx, name, cfg.Capabilities, opts)
	}
}

// Stats counts the outcome of a capture run.
type Stats struct {
	Captured int
	Skipped  int
	Failed   int
	Errors   []error
}

func (s *Stats) add(other Stats) {
	s.Captured += other.Captured
	s.Skipped += other.Skipped
	s.Failed += other.Failed
	s.Errors = append(s.Errors, other.Errors...)
}

// Manager captures the tags of many campaigns with every config.
type Manager struct {
	BaseDir string
	Sizes   []string
	Types   []string
	// CaptureExisting recaptures tags the canonical build already has.
	CaptureExisting bool
	NewCapturer     Factory
	Logger          *slog.Logger
}

// CaptureAll captures tags into build with one worker per config, at most
// MaxRemoteJobs at a time. Tag failures are counted in the returned stats;
// the error reports configs whose capturer could not be created.
func (m *Manager) CaptureAll(ctx context.Context, tags map[string]placelocal.Tags, build string,
	configs map[string]config.BrowserConfig) (Stats, error) {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if m.NewCapturer == nil {
		return Stats{}, fmt.Errorf("capture manager has no capturer factory")
	}

	names := make([]string, 0, len(configs))
	for name, cfg := range configs {
		if !cfg.Enabled {
			logger.Warn("skipping disabled config", "config", name)
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu    sync.Mutex
		total Stats
		errs  []error
	)
	var g errgroup.Group
	g.SetLimit(MaxRemoteJobs)
	for _, name := range names {
		g.Go(func() error {
			capturer, err := m.NewCapturer(ctx, name, configs[name])
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("config %s: %w", name, err))
				mu.Unlock()
				return nil
			}
			if c, ok := capturer.(io.Closer); ok {
				defer func() { _ = c.Close() }()
			}

			stats := m.captureConfig(ctx, capturer, tags, build, name, logger.With("config", name))
			mu.Lock()
			total.add(stats)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return total, errors.Join(errs...)
}

func (m *Manager) captureConfig(ctx context.Context, capturer Capturer, tags map[string]placelocal.Tags,
	build, configName string, logger *slog.Logger) Stats {
	var stats Stats

	cids := make([]string, 0, len(tags))
	for cid := range tags {
		cids = append(cids, cid)
	}
	sort.Strings(cids)

	for _, cid := range cids {
		campaignTags := tags[cid]
		for _, size := range m.Sizes {
			if _, ok := campaignTags[size]; !ok {
				logger.Warn("no tag size for campaign, skipping", "size", size, "campaign", cid)
				continue
			}
			for _, tagType := range m.Types {
				if ctx.Err() != nil {
					stats.Errors = append(stats.Errors, ctx.Err())
					return stats
				}
				id := output.New(m.BaseDir, output.Fields{
					Build: build, Campaign: cid, Size: size, Type: tagType, Config: configName,
				})
				if !m.CaptureExisting && id.With(output.Fields{Build: output.DefaultBuild}).HasArtifact() {
					logger.Debug("skipping existing capture", "identity", id.String())
					stats.Skipped++
					continue
				}

				markup, ok := campaignTags.Markup(size, tagType)
				if !ok {
					logger.Debug("no tag of type", "type", tagType, "size", size, "campaign", cid)
					continue
				}
				if err := placelocal.ValidateTag(markup, tagType); err != nil {
					logger.Warn("skipping invalid tag", "identity", id.String(), "error", err)
					stats.Failed++
					stats.Errors = append(stats.Errors, fmt.Errorf("%s: %w", id, err))
					continue
				}
				if err := capturer.Capture(ctx, id, markup); err != nil {
					logger.Error("capture failed", "identity", id.String(), "error", err)
					stats.Failed++
					stats.Errors = append(stats.Errors, err)
					continue
				}
				stats.Captured++
			}
		}
		logger.Debug("captured tags for campaign", "campaign", cid)
	}
	logger.Info("capture finished", "captured", stats.Captured, "skipped", stats.Skipped, "failed", stats.Failed)
	return stats
}
