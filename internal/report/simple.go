package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text reports.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors so the output can be piped to files or other tools unchanged.
type SimpleWriter struct {
	baseWriter
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SiteOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(&w.baseWriter)
	}
	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeTotals(&sb, report)
	w.writeSites(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, r *Report) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n                         TORSPIDER CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Session:   %s\n", r.Session)
	fmt.Fprintf(sb, "Finished:  %s\n", r.FinishedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:   %s\n", r.Elapsed.Round(time.Second))
	if r.Error != "" {
		fmt.Fprintf(sb, "Status:    %s - %s\n", statusLabel(r.Status), r.Error)
	} else {
		fmt.Fprintf(sb, "Status:    %s\n", statusLabel(r.Status))
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeTotals(sb *strings.Builder, r *Report) {
	section(sb, "TOTALS")

	internal, external := r.Links()
	fmt.Fprintf(sb, "  Dispatched:     %d\n", r.Dispatched)
	fmt.Fprintf(sb, "  Fetched:        %d\n", r.Fetched)
	fmt.Fprintf(sb, "  Failed:         %d\n", r.Failed)
	fmt.Fprintf(sb, "  Claimed URLs:   %d\n", r.Claimed)
	fmt.Fprintf(sb, "  Archived:       %d\n", r.Archived)
	fmt.Fprintf(sb, "  Rejected:       %d\n", r.Rejected)
	fmt.Fprintf(sb, "  Sites:          %d (%d via tor)\n", len(r.Sites), r.ProxiedSites())
	fmt.Fprintf(sb, "  Links:          %d internal, %d external\n", internal, external)
	fmt.Fprintf(sb, "  Downloaded:     %s\n", humanize.Bytes(uint64(max(r.Bytes(), 0)))) //nolint:gosec // clamped
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSites(sb *strings.Builder, r *Report) {
	section(sb, "SITES")

	rows, hidden := w.sites(r)
	if len(rows) == 0 {
		sb.WriteString("  No sites fetched\n\n")
		return
	}

	for _, row := range rows {
		fmt.Fprintf(sb, "  [%s] %s\n", row.Route, row.Domain)
		if row.Title != "-" {
			fmt.Fprintf(sb, "    Title:  %s\n", row.Title)
		}
		fmt.Fprintf(sb, "    Pages:  %s (%s failed, depth %s, %s)\n", row.Pages, row.Failures, row.Depth, row.Size)
		fmt.Fprintf(sb, "    Links:  %s internal, %s external (ratio %s)\n", row.Internal, row.External, row.Ratio)
	}
	if hidden > 0 {
		fmt.Fprintf(sb, "  ... and %d more\n", hidden)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\nReport generated by torspider\n")
	sb.WriteString("https://github.com/nao1215/torspider\n")
	sb.WriteString(strings.Repeat("=", ruleWidth))
	sb.WriteString("\n")
}

func section(sb *strings.Builder, name string) {
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n")
	sb.WriteString(name)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", ruleWidth))
	sb.WriteString("\n\n")
}
