package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonathan/tagcompare/internal/compare"
	"github.com/jonathan/tagcompare/internal/imaging"
	"github.com/jonathan/tagcompare/internal/observability"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff A.png B.png",
	Short: "Score two images and optionally write their diagnostic",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

var (
	diffOut       string
	diffLabel     bool
	diffGreyscale bool
	diffOpacity   float64
	diffCrop      string
)

func init() {
	diffCmd.Flags().StringVarP(&diffOut, "out", "o", "", "Write the diagnostic image to this path")
	diffCmd.Flags().BoolVar(&diffLabel, "label", false, "Add the pair, score and severity to the diagnostic")
	diffCmd.Flags().BoolVar(&diffGreyscale, "greyscale", false, "Compare greyscale histograms")
	diffCmd.Flags().Float64Var(&diffOpacity, "opacity", imaging.DefaultOpacity, "Opacity of the difference overlay (0-1)")
	diffCmd.Flags().StringVar(&diffCrop, "crop", "", "Crop both images to x0,y0,x1,y1 before comparing")
	rootCmd.AddCommand(diffCmd)
}

func imageName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// parseRect parses "x0,y0,x1,y1".
func parseRect(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("invalid rectangle %q: want x0,y0,x1,y1", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("invalid rectangle %q: %w", s, err)
		}
		v[i] = n
	}
	return image.Rect(v[0], v[1], v[2], v[3]), nil
}

func runDiff(_ *cobra.Command, args []string) error {
	if diffOpacity <= 0 || diffOpacity > 1 {
		return fmt.Errorf("--opacity must be in (0, 1]")
	}
	s, err := loadSettings()
	if err != nil {
		return err
	}

	pathA, pathB := args[0], args[1]
	a, err := imaging.Load(pathA)
	if err != nil {
		return err
	}
	b, err := imaging.Load(pathB)
	if err != nil {
		return err
	}

	if diffCrop != "" {
		rect, err := parseRect(diffCrop)
		if err != nil {
			return err
		}
		if a, err = imaging.Crop(a, rect); err != nil {
			return err
		}
		if b, err = imaging.Crop(b, rect); err != nil {
			return err
		}
	}

	score := compare.Score(imaging.Compare(a, b, diffGreyscale || s.Greyscale))
	level := s.Thresholds.Classify(float64(score))

	if diffOut != "" {
		pr := compare.PairResult{A: imageName(pathA), B: imageName(pathB), Score: score, Level: level}
		var img image.Image
		if diffLabel {
			img = compare.DiagnosticImage(a, b, pr, diffOpacity)
		} else if img, err = imaging.DiffImage(a, b, diffOpacity, ""); err != nil {
			img = imaging.SideBySide(a, b)
		}
		if err := imaging.Save(diffOut, img); err != nil {
			return err
		}
	}

	observability.NewPrinter(os.Stdout).PrintDiff(pathA, pathB, score, level, diffOut)
	return nil
}
