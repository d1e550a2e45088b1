package output

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// AggregateStats counts what one aggregation pass did.
type AggregateStats struct {
	Builds  int // run builds visited
	Copied  int // files written to the canonical build
	Skipped int // files already present in the canonical build
}

// Aggregate merges every run build under sourceRoot into the canonical build
// and returns the canonical build path.
func Aggregate(sourceRoot string) (string, error) {
	path, _, err := AggregateWithStats(sourceRoot)
	return path, err
}

// AggregateWithStats is Aggregate that also reports counts.
//
// Run builds are visited in ascending name order and files that already exist
// in the canonical build are never overwritten, so the earliest capture of an
// identity wins and running it again changes nothing.
func AggregateWithStats(sourceRoot string) (string, AggregateStats, error) {
	var stats AggregateStats

	info, err := os.Stat(sourceRoot)
	if err != nil {
		return "", stats, &InvalidPathError{Path: sourceRoot, Message: "source root does not exist", Cause: err}
	}
	if !info.IsDir() {
		return "", stats, &InvalidPathError{Path: sourceRoot, Message: "source root is not a directory"}
	}

	builds, err := ListDirs(sourceRoot)
	if err != nil {
		return "", stats, err
	}

	canonical := filepath.Join(sourceRoot, DefaultBuild)
	if err := os.MkdirAll(canonical, 0755); err != nil {
		return "", stats, fmt.Errorf("failed to create canonical build %s: %w", canonical, err)
	}

	for _, build := range builds {
		if build == DefaultBuild {
			continue
		}
		stats.Builds++
		src := filepath.Join(sourceRoot, build)
		if err := copyMissing(src, canonical, &stats); err != nil {
			return "", stats, fmt.Errorf("failed to aggregate build %s: %w", build, err)
		}
	}

	slog.Debug("aggregated builds",
		"root", sourceRoot, "builds", stats.Builds, "copied", stats.Copied, "skipped", stats.Skipped)
	return canonical, stats, nil
}

func copyMissing(srcRoot, dstRoot string, stats *AggregateStats) error {
	return filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == MetaDir && path != srcRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.Contains(d.Name(), DiagnosticSep) {
			return nil
		}

		rel, err := filepath.Rel(srcRoot, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(dstRoot, rel)

		copied, err := copyFileExclusive(path, dst)
		if err != nil {
			return err
		}
		if copied {
			stats.Copied++
		} else {
			stats.Skipped++
		}
		return nil
	})
}

// copyFileExclusive copies src to dst unless dst already exists.
func copyFileExclusive(src, dst string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create %s: %w", dst, err)
	}

	in, err := os.Open(src)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return false, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return false, fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return false, fmt.Errorf("failed to close %s: %w", dst, err)
	}
	return true, nil
}
