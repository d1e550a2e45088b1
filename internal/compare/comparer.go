package compare

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/tagcompare/internal/imaging"
	"github.com/jonathan/tagcompare/internal/output"
	"github.com/jonathan/tagcompare/internal/severity"
	"golang.org/x/sync/errgroup"
)

// Recorder receives measurements of running comparisons.
type Recorder interface {
	UnitStarted(ctx context.Context, group string)
	UnitCompleted(ctx context.Context, group string, level severity.Level, elapsed time.Duration)
	JobCompleted(ctx context.Context, group string, status Status, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) UnitStarted(context.Context, string)                                  {}
func (nopRecorder) UnitCompleted(context.Context, string, severity.Level, time.Duration) {}
func (nopRecorder) JobCompleted(context.Context, string, Status, time.Duration)          {}

// Comparer runs comparison jobs.
type Comparer struct {
	logger   *slog.Logger
	recorder Recorder
}

// NewComparer creates a Comparer. A nil logger uses slog.Default and a nil
// recorder discards measurements.
func NewComparer(logger *slog.Logger, recorder Recorder) *Comparer {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Comparer{logger: logger, recorder: recorder}
}

// Run compares every (campaign × size × type) unit of opts on a bounded pool
// of workers and returns the finished job. Units that cannot be compared are
// counted as invalid; the job only fails when its units cannot be
// enumerated. The context is passed to the recorder and is not used to stop
// running units.
func (c *Comparer) Run(ctx context.Context, opts Options) (*Job, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	job := newJob(opts)
	job.start()
	log := c.logger.With("job", job.ID.String(), "group", opts.Group, "mode", string(opts.Mode))

	units, err := enumerate(opts)
	if err != nil {
		job.finish(err)
		c.recorder.JobCompleted(ctx, opts.Group, job.Status, job.Elapsed())
		log.Error("comparison job failed", "error", err)
		return job, err
	}
	log.Info("comparison job started", "units", len(units), "configs", opts.Configs, "workers", opts.Workers)

	meta := newMetaWriter()
	var g errgroup.Group
	g.SetLimit(opts.Workers)
	for _, u := range units {
		g.Go(func() error {
			c.recorder.UnitStarted(ctx, opts.Group)
			res := c.runUnit(opts, u, meta, log)
			job.record(res)
			c.recorder.UnitCompleted(ctx, opts.Group, res.Level, res.Elapsed)
			if opts.OnUnit != nil {
				opts.OnUnit(res)
			}
			return nil
		})
	}
	_ = g.Wait()

	job.finish(nil)
	c.recorder.JobCompleted(ctx, opts.Group, job.Status, job.Elapsed())
	log.Info("comparison job completed",
		"total", job.Result.Total(),
		"invalid", job.Result.Count(severity.Invalid),
		"regressions", job.Result.AtLeast(severity.Slight),
		"elapsed", job.Elapsed())
	return job, nil
}

// CompareGroups runs one job per named comparison group, in name order.
func (c *Comparer) CompareGroups(ctx context.Context, opts Options, groups map[string][]string) ([]*Job, error) {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	jobs := make([]*Job, 0, len(names))
	var errs []error
	for _, name := range names {
		o := opts
		o.Group = name
		o.Configs = groups[name]
		job, err := c.Run(ctx, o)
		if job != nil {
			jobs = append(jobs, job)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("group %s: %w", name, err))
		}
	}
	return jobs, errors.Join(errs...)
}

// enumerate returns the Cartesian product of campaigns, sizes and types.
func enumerate(opts Options) ([]Unit, error) {
	campaigns := opts.Campaigns
	if len(campaigns) == 0 {
		build := output.DefaultBuild
		if opts.Mode == ModeReference {
			build = opts.Build
		}
		listed, err := output.New(opts.BaseDir, output.Fields{Build: build}).Campaigns()
		if err != nil {
			return nil, fmt.Errorf("failed to enumerate campaigns: %w", err)
		}
		campaigns = listed
	}

	units := make([]Unit, 0, len(campaigns)*len(opts.Sizes)*len(opts.Types))
	for _, cid := range campaigns {
		for _, size := range opts.Sizes {
			for _, typ := range opts.Types {
				units = append(units, Unit{Campaign: output.Key(cid), Size: size, Type: typ})
			}
		}
	}
	return units, nil
}

func (c *Comparer) runUnit(opts Options, u Unit, meta *metaWriter, log *slog.Logger) (res UnitResult) {
	started := time.Now()
	res = UnitResult{Unit: u, Score: Score(imaging.InvalidScore), Level: severity.Invalid}
	log = log.With("campaign", u.Campaign, "size", u.Size, "type", u.Type)

	defer func() {
		if r := recover(); r != nil {
			log.Error("comparison unit panicked", "panic", r)
			res.Score = Score(imaging.InvalidScore)
			res.Level = severity.Invalid
			res.Error = fmt.Sprintf("panic: %v", r)
		}
		res.Elapsed = time.Since(started)
	}()

	pairs, target := opts.pairs(u)

	for _, p := range pairs {
		for _, id := range []output.Identity{p.a, p.b} {
			if !id.HasArtifact() {
				res.Error = fmt.Sprintf("missing artifact for %s", id)
				log.Debug("skipping unit with missing artifact", "identity", id.String())
				return res
			}
		}
	}

	images := make(map[string]image.Image)
	load := func(id output.Identity) (image.Image, error) {
		path, err := id.ImagePath()
		if err != nil {
			return nil, err
		}
		if img, ok := images[path]; ok {
			return img, nil
		}
		img, err := imaging.Load(path)
		if err != nil {
			return nil, err
		}
		images[path] = img
		return img, nil
	}

	type loadedPair struct {
		pair
		imgA, imgB image.Image
	}
	loaded := make([]loadedPair, 0, len(pairs))
	var sum float64
	for _, p := range pairs {
		imgA, err := load(p.a)
		var imgB image.Image
		if err == nil {
			imgB, err = load(p.b)
		}
		if err != nil {
			log.Warn("failed to load artifact", "error", err)
			res.Error = err.Error()
			res.Pairs = nil
			return res
		}
		loaded = append(loaded, loadedPair{pair: p, imgA: imgA, imgB: imgB})

		score := imaging.Compare(imgA, imgB, opts.Greyscale)
		res.Pairs = append(res.Pairs, PairResult{
			A: p.nameA, B: p.nameB, Score: Score(score), Level: opts.Thresholds.Classify(score),
		})
		sum += score
	}

	mean := imaging.InvalidScore
	if len(pairs) > 0 {
		mean = sum / float64(len(pairs))
	}
	res.Score = Score(mean)
	res.Level = opts.Thresholds.Classify(mean)
	if res.Level == severity.Invalid {
		res.Error = "incomparable images"
		return res
	}

	dest := severity.Persistence(res.Level)
	if opts.DryRun || !dest.Any() {
		return res
	}

	for i, lp := range loaded {
		pr := res.Pairs[i]
		if pr.Level < severity.Slight {
			continue
		}
		img := DiagnosticImage(lp.imgA, lp.imgB, pr, opts.Opacity)
		written, err := c.persist(target, dest, img, float64(pr.Score), meta, lp.nameA, lp.nameB)
		res.Diagnostics = append(res.Diagnostics, written...)
		if err != nil {
			log.Warn("failed to write diagnostic", "a", lp.nameA, "b", lp.nameB, "error", err)
		}
	}

	if opts.Mode == ModeConfigs && len(opts.Configs) > 2 {
		cells := make([]imaging.Labeled, 0, len(opts.Configs))
		for _, cfg := range opts.Configs {
			img, err := load(target.With(output.Fields{Config: cfg}))
			if err != nil {
				log.Warn("failed to load artifact for grid", "config", cfg, "error", err)
				return res
			}
			cells = append(cells, imaging.Labeled{Name: cfg, Image: img})
		}
		grid, err := imaging.Grid(cells, opts.Opacity)
		if err == nil {
			var written []string
			written, err = c.persist(target, severity.Destinations{Tag: true}, grid, mean, meta, opts.Configs...)
			res.Diagnostics = append(res.Diagnostics, written...)
		}
		if err != nil {
			log.Warn("failed to write comparison grid", "error", err)
		}
	}
	return res
}

// persist writes img to the destinations of a diagnostic and returns the
// paths written.
func (c *Comparer) persist(target output.Identity, dest severity.Destinations, img image.Image,
	score float64, meta *metaWriter, names ...string) ([]string, error) {
	var written []string
	if dest.Tag {
		path, err := target.TagDiagnosticPath(names...)
		if err != nil {
			return written, err
		}
		if err := imaging.Save(path, img); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if dest.Campaign {
		path, err := target.CampaignDiagnosticPath(names...)
		if err != nil {
			return written, err
		}
		ok, err := meta.write(path, score, img)
		if err != nil {
			return written, err
		}
		if ok {
			written = append(written, path)
		}
	}
	return written, nil
}

// DiagnosticImage renders the difference of a pair annotated with its score.
// Pairs of different dimensions are shown side by side instead.
func DiagnosticImage(a, b image.Image, pr PairResult, opacity float64) image.Image {
	label := imaging.PairLabel(pr.A, pr.B)
	img, err := imaging.DiffImage(a, b, opacity, label)
	if err != nil {
		img = imaging.SideBySide(a, b)
		label += " (size mismatch)"
	}
	return imaging.AddInfo(img, []imaging.InfoLine{
		{Key: "compared", Value: label},
		{Key: "score", Value: fmt.Sprintf("%.2f", float64(pr.Score))},
		{Key: "severity", Value: strings.ToUpper(pr.Level.String())},
	})
}

// metaWriter serializes writes to campaign-level diagnostics, which units of
// the same campaign share. Within a job a path keeps the highest-scoring
// diagnostic.
type metaWriter struct {
	mu   sync.Mutex
	best map[string]float64
}

func newMetaWriter() *metaWriter {
	return &metaWriter{best: make(map[string]float64)}
}

func (m *metaWriter) write(path string, score float64, img image.Image) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.best[path]; ok && score < prev {
		return false, nil
	}
	if err := imaging.Save(path, img); err != nil {
		return false, err
	}
	m.best[path] = score
	return true, nil
}
