// Package observability provides metrics and formatted report output.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jonathan/tagcompare/internal/capture"
	"github.com/jonathan/tagcompare/internal/compare"
	"github.com/jonathan/tagcompare/internal/output"
	"github.com/jonathan/tagcompare/internal/severity"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer writes boxed human-readable reports
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintJob outputs the severity counts of a comparison job and its worst
// units.
func (p *Printer) PrintJob(job *compare.Job) {
	if job == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job:      %s\n", job.ID))
	sb.WriteString(fmt.Sprintf("Mode:     %s\n", job.Mode))
	if job.Build != "" {
		sb.WriteString(fmt.Sprintf("Build:    %s\n", job.Build))
	}
	sb.WriteString(fmt.Sprintf("Status:   %s\n", job.Status))
	if job.Error != "" {
		sb.WriteString(fmt.Sprintf("Error:    %s\n", job.Error))
	}
	sb.WriteString(fmt.Sprintf("Elapsed:  %s\n", job.Elapsed().Round(time.Millisecond)))
	sb.WriteString("\n")

	counts := job.Result.Counts()
	for _, l := range severity.Levels() {
		sb.WriteString(fmt.Sprintf("  %-9s %d\n", strings.ToUpper(l.String()), counts[l]))
	}
	sb.WriteString(fmt.Sprintf("  %-9s %d\n", "TOTAL", job.Result.Total()))

	worst := regressions(job.Units())
	if len(worst) > 0 {
		sb.WriteString("\nWorst regressions:\n")
		count := min(len(worst), maxItemsToShow)
		for i := 0; i < count; i++ {
			u := worst[i]
			sb.WriteString(fmt.Sprintf("  • %s/%s/%s %.2f (%s)\n", u.Campaign, u.Size, u.Type, float64(u.Score), u.Level))
		}
		if len(worst) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(worst)-maxItemsToShow))
		}
	}

	title := "COMPARISON RESULT"
	if job.Group != "" {
		title += ": " + job.Group
	}
	p.printBox(title, strings.TrimSuffix(sb.String(), "\n"))
}

// regressions returns the units at Slight or above, highest score first.
func regressions(units []compare.UnitResult) []compare.UnitResult {
	var out []compare.UnitResult
	for _, u := range units {
		if u.Level >= severity.Slight {
			out = append(out, u)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// PrintAggregate outputs the result of folding run builds into the canonical
// build.
func (p *Printer) PrintAggregate(stats output.AggregateStats) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Builds merged:    %d\n", stats.Builds))
	sb.WriteString(fmt.Sprintf("Files copied:     %d\n", stats.Copied))
	sb.WriteString(fmt.Sprintf("Already present:  %d", stats.Skipped))
	p.printBox("AGGREGATED BUILDS", sb.String())
}

// PrintCaptureStats outputs the result of a capture run.
func (p *Printer) PrintCaptureStats(build string, stats capture.Stats) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Build:     %s\n", build))
	sb.WriteString(fmt.Sprintf("Captured:  %d\n", stats.Captured))
	sb.WriteString(fmt.Sprintf("Skipped:   %d\n", stats.Skipped))
	sb.WriteString(fmt.Sprintf("Failed:    %d\n", stats.Failed))

	if len(stats.Errors) > 0 {
		sb.WriteString("\nErrors:\n")
		count := min(len(stats.Errors), 3)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %v\n", stats.Errors[i]))
		}
		if len(stats.Errors) > 3 {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(stats.Errors)-3))
		}
	}
	p.printBox("CAPTURED TAGS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDiff outputs the score of an ad-hoc image comparison.
func (p *Printer) PrintDiff(a, b string, score compare.Score, level severity.Level, written string) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("A:         %s\n", a))
	sb.WriteString(fmt.Sprintf("B:         %s\n", b))
	if score.Invalid() {
		sb.WriteString("Score:     n/a\n")
	} else {
		sb.WriteString(fmt.Sprintf("Score:     %.2f\n", float64(score)))
	}
	sb.WriteString(fmt.Sprintf("Severity:  %s", strings.ToUpper(level.String())))
	if written != "" {
		sb.WriteString(fmt.Sprintf("\nWritten:   %s", written))
	}
	p.printBox("IMAGE DIFF", sb.String())
}
