package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/desertthunder/podq/internal/tasks"
)

// Printer writes progress updates as styled lines.
type Printer struct {
	w       io.Writer
	palette *Palette
	quiet   bool
}

// NewPrinter creates a [Printer]. When quiet is set, per-show scan lines are suppressed.
func NewPrinter(w io.Writer, quiet bool) *Printer {
	return &Printer{w: w, palette: Styles, quiet: quiet}
}

// Line formats a single update, or returns "" when it should not be shown.
func (p *Printer) Line(update tasks.ProgressUpdate) string {
	if p.quiet && update.Phase == tasks.ScanShows {
		return ""
	}
	tag := p.palette.Help(fmt.Sprintf("[%s]", update.Phase))
	return fmt.Sprintf("%s %s", tag, update.Message)
}

// Consume prints updates until the channel is closed.
func (p *Printer) Consume(updates <-chan tasks.ProgressUpdate) {
	for update := range updates {
		if line := p.Line(update); line != "" {
			fmt.Fprintln(p.w, line)
		}
	}
}

// RenderResult summarizes a successful run.
func RenderResult(result *tasks.RunResult) string {
	if result.NoShows {
		return Styles.Warn(result.Message()) + "\n"
	}

	var b strings.Builder
	b.WriteString(Styles.OK("✓ " + result.Message()))
	b.WriteString("\n")

	fmt.Fprintf(&b, "  Shows scanned: %d", result.Shows)
	if result.Skipped > 0 {
		fmt.Fprintf(&b, " (%d skipped as completed)", result.Skipped)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  New episodes:  %d\n", result.PriorityCount)
	if result.BacklogCount > 0 {
		fmt.Fprintf(&b, "  Backlog:       %d episodes of %d min\n", result.BacklogCount, result.BacklogMinute)
	} else {
		b.WriteString("  Backlog:       none\n")
	}
	fmt.Fprintf(&b, "  Queued:        %d episodes\n", len(result.URIs))
	return b.String()
}

// RenderFailure formats a failed run the way the job registry reports it.
func RenderFailure(err error) string {
	return Styles.Err(fmt.Sprintf("✗ An error occurred: %v", err)) + "\n"
}
