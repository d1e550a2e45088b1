package main

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/jonathan/tagcompare/internal/compare"
	"github.com/jonathan/tagcompare/internal/config"
	"github.com/jonathan/tagcompare/internal/output"
	"github.com/jonathan/tagcompare/internal/severity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetCompareFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		compareGroup, compareAll, compareBuild, compareReference = "", false, "", false
		compareCampaigns, compareDryRun, compareWorkers, compareGreyscale = nil, false, 0, false
		compareMetricsAddr, compareNoAggregate, compareFailOn = "", false, ""
	})
}

func TestComparisonOptions(t *testing.T) {
	s := config.Defaults()
	s.OutputDir = "out"
	s.Campaigns = config.IDs{"1", "2"}
	s.Workers = 4

	t.Run("settings", func(t *testing.T) {
		opts := comparison{settings: s}.options()
		assert.Equal(t, "out", opts.BaseDir)
		assert.Equal(t, []string{"1", "2"}, opts.Campaigns)
		assert.Equal(t, s.TagSizes, opts.Sizes)
		assert.Equal(t, s.TagTypes, opts.Types)
		assert.Equal(t, 4, opts.Workers)
		assert.Equal(t, s.Thresholds, opts.Thresholds)
		assert.Empty(t, opts.Mode)
	})

	t.Run("flags override settings", func(t *testing.T) {
		opts := comparison{settings: s, campaigns: []string{"9"}, workers: 16, greyscale: true, dryRun: true}.options()
		assert.Equal(t, []string{"9"}, opts.Campaigns)
		assert.Equal(t, 16, opts.Workers)
		assert.True(t, opts.Greyscale)
		assert.True(t, opts.DryRun)
	})

	t.Run("reference", func(t *testing.T) {
		opts := comparison{settings: s, build: "20260101-120000", reference: true}.options()
		assert.Equal(t, compare.ModeReference, opts.Mode)
		assert.Equal(t, "20260101-120000", opts.Build)
	})
}

func TestRunCompare_IdenticalCaptures(t *testing.T) {
	resetCompareFlags(t)
	out := useWorkspace(t)
	writeCapture(t, out, output.DefaultBuild, "chrome", solid(red))
	writeCapture(t, out, output.DefaultBuild, "firefox", solid(red))

	compareGroup = "browsers"
	compareFailOn = "slight"
	require.NoError(t, runCompare(nil, nil))
}

func TestRunCompare_FailOn(t *testing.T) {
	resetCompareFlags(t)
	out := useWorkspace(t)
	writeCapture(t, out, output.DefaultBuild, "chrome", solid(red))
	writeCapture(t, out, output.DefaultBuild, "firefox", solid(blue))

	compareGroup = "browsers"
	compareFailOn = "severe"
	err := runCompare(nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 units at severe or worse")

	diag := filepath.Join(out, output.DefaultBuild, testCampaign, "meta")
	assert.DirExists(t, diag)
}

func TestRunCompare_Errors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func()
		wantErr string
	}{
		{
			name:    "invalid fail-on",
			setup:   func() { compareFailOn = "catastrophic" },
			wantErr: "invalid --fail-on",
		},
		{
			name:    "fail-on invalid",
			setup:   func() { compareFailOn = "invalid" },
			wantErr: "not a regression level",
		},
		{
			name:    "reference without build",
			setup:   func() { compareReference = true },
			wantErr: "--reference requires --build",
		},
		{
			name:    "unknown group",
			setup:   func() { compareGroup = "mobile" },
			wantErr: "mobile",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetCompareFlags(t)
			useWorkspace(t)
			tt.setup()

			err := runCompare(nil, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestComparisonRun_Reference(t *testing.T) {
	out := useWorkspace(t)
	build := "20260101-120000"
	writeCapture(t, out, output.DefaultBuild, "chrome", solid(red))
	writeCapture(t, out, output.DefaultBuild, "firefox", solid(red))
	writeCapture(t, out, build, "chrome", solid(blue))
	writeCapture(t, out, build, "firefox", solid(red))

	s, err := loadSettings()
	require.NoError(t, err)
	cs, err := loadCompareSet()
	require.NoError(t, err)

	jobs, err := comparison{settings: s, set: cs, group: "browsers", build: build, reference: true}.run(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	// only chrome changed, so the unit averages a severe and an identical pair
	units := jobs[0].Units()
	require.Len(t, units, 1)
	assert.Equal(t, severity.Moderate, units[0].Level)
	require.Len(t, units[0].Pairs, 2)
	assert.Equal(t, severity.Severe, units[0].Pairs[0].Level)
	assert.Equal(t, severity.None, units[0].Pairs[1].Level)
	assert.FileExists(t, filepath.Join(out, build, testCampaign, testSize, testType, "chrome"+output.DiagnosticSep+output.DefaultBuild+".png"))
}

func TestComparisonRun_AllGroups(t *testing.T) {
	out := useWorkspace(t)
	writeCapture(t, out, output.DefaultBuild, "chrome", solid(red))
	writeCapture(t, out, output.DefaultBuild, "firefox", solid(red))

	s, err := loadSettings()
	require.NoError(t, err)
	cs, err := loadCompareSet()
	require.NoError(t, err)

	jobs, err := comparison{settings: s, set: cs, dryRun: true}.run(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	groups := map[string]*compare.Job{}
	for _, job := range jobs {
		groups[job.Group] = job
	}
	require.Contains(t, groups, "browsers")
	require.Contains(t, groups, "webkit")
	assert.Equal(t, 1, groups["browsers"].Result.Count(severity.None))
	// safari is never captured
	assert.Equal(t, 1, groups["webkit"].Result.Count(severity.Invalid))
}

func TestCompareCommand_FlagsValidation(t *testing.T) {
	binaryPath := getBinaryPath(t)

	cmd := exec.Command(binaryPath, "compare", "--group", "browsers", "--all")
	out, err := cmd.CombinedOutput()
	assert.Error(t, err)
	assert.Contains(t, string(out), "none of the others can be")
}
