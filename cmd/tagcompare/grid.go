package main

import (
	"fmt"
	"log/slog"

	"github.com/jonathan/tagcompare/internal/imaging"
	"github.com/spf13/cobra"
)

var gridCmd = &cobra.Command{
	Use:   "grid IMG IMG...",
	Short: "Render every pairwise difference of a set of images",
	Long: `Renders an N×N grid where cell (i, j) shows the difference of image j painted over
image i. Each image is labeled with its file name.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runGrid,
}

var (
	gridOut     string
	gridOpacity float64
)

func init() {
	gridCmd.Flags().StringVarP(&gridOut, "out", "o", "", "Path of the grid image (required)")
	gridCmd.Flags().Float64Var(&gridOpacity, "opacity", imaging.DefaultOpacity, "Opacity of the difference overlay (0-1)")
	_ = gridCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(gridCmd)
}

func runGrid(_ *cobra.Command, args []string) error {
	if gridOpacity <= 0 || gridOpacity > 1 {
		return fmt.Errorf("--opacity must be in (0, 1]")
	}
	cells := make([]imaging.Labeled, 0, len(args))
	for _, path := range args {
		img, err := imaging.Load(path)
		if err != nil {
			return err
		}
		cells = append(cells, imaging.Labeled{Name: imageName(path), Image: img})
	}

	grid, err := imaging.Grid(cells, gridOpacity)
	if err != nil {
		return fmt.Errorf("failed to render grid: %w", err)
	}
	if err := imaging.Save(gridOut, grid); err != nil {
		return err
	}
	slog.Info("wrote grid", "path", gridOut, "images", len(cells))
	return nil
}
