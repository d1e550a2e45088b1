package main

import (
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonathan/tagcompare/internal/imaging"
	"github.com/jonathan/tagcompare/internal/output"
	"github.com/stretchr/testify/require"
)

const (
	testCampaign = "477944"
	testSize     = "medium_rectangle"
	testType     = "iframe"
)

var (
	red  = color.RGBA{255, 0, 0, 255}
	blue = color.RGBA{0, 0, 255, 255}
)

// getBinaryPath returns the path to the tagcompare binary for testing
func getBinaryPath(t *testing.T) string {
	if testing.Short() {
		t.Skip("Skipping CLI tests in short mode")
	}

	binaryPath := filepath.Join("..", "..", "bin", "tagcompare")
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		t.Skipf("Binary not found at %s, build it first with 'go build -o bin/tagcompare ./cmd/tagcompare'", binaryPath)
	}

	return binaryPath
}

func solid(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writeImage(t *testing.T, path string, img image.Image) string {
	t.Helper()
	require.NoError(t, imaging.Save(path, img))
	return path
}

func writeCapture(t *testing.T, base, build, config string, img image.Image) {
	t.Helper()
	id := output.New(base, output.Fields{Build: build, Campaign: testCampaign, Size: testSize, Type: testType, Config: config})
	path, err := id.ImagePath()
	require.NoError(t, err)
	writeImage(t, path, img)
}

func writeJSON(t *testing.T, path string, v any) string {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// useWorkspace writes settings.json and compare.json for a workspace whose
// output directory is returned, and points the global flags at them.
func useWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	out := filepath.Join(dir, "output")
	require.NoError(t, os.MkdirAll(out, 0755))

	settings := writeJSON(t, filepath.Join(dir, "settings.json"), map[string]any{
		"campaigns":  []string{testCampaign},
		"tagsizes":   []string{testSize},
		"tagtypes":   []string{testType},
		"output_dir": out,
		"log_dir":    filepath.Join(dir, "logs"),
		"workers":    2,
		"thresholds": map[string]float64{"none": 0, "slight": 1, "moderate": 3, "severe": 5},
	})
	compareSet := writeJSON(t, filepath.Join(dir, "compare.json"), map[string]any{
		"configs": map[string]any{
			"chrome":  map[string]any{"enabled": true, "capabilities": map[string]any{"browser_name": "chrome"}},
			"firefox": map[string]any{"enabled": true, "capabilities": map[string]any{"browser_name": "firefox"}},
			"safari":  map[string]any{"enabled": false, "capabilities": map[string]any{"browser_name": "safari"}},
		},
		"comparisons": map[string]any{
			"browsers": []string{"chrome", "firefox"},
			"webkit":   []string{"chrome", "safari"},
		},
	})

	prevSettings, prevCompare := settingsPath, compareConfigPath
	settingsPath, compareConfigPath = settings, compareSet
	t.Cleanup(func() {
		settingsPath, compareConfigPath = prevSettings, prevCompare
	})
	return out
}
