package report

import (
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...SiteOption) *MarkdownWriter {
	w := &MarkdownWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(&w.baseWriter)
	}
	return w
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeLinks(md, report)
	w.writeSites(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, r *Report) {
	md.H1("Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Session", "`" + r.Session + "`"},
			{"Finished", r.FinishedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", r.Elapsed.Round(time.Second).String()},
			{"Status", statusLabel(r.Status)},
			{"Fetched", strconv.FormatInt(r.Fetched, 10)},
			{"Failed", strconv.FormatInt(r.Failed, 10)},
			{"Claimed URLs", strconv.FormatInt(r.Claimed, 10)},
			{"Archived", strconv.Itoa(r.Archived)},
			{"Rejected", strconv.Itoa(r.Rejected)},
			{"Downloaded", humanize.Bytes(uint64(max(r.Bytes(), 0)))}, //nolint:gosec // clamped
		},
	})
	md.PlainText("")

	switch r.Status {
	case StatusHalted:
		md.Cautionf("The crawl halted: %s", r.Error)
	case StatusInterrupted:
		md.Warningf("The crawl was interrupted after %d pages. Pending URLs can be restored with --resume.", r.Fetched)
	default:
		if r.Fetched == 0 {
			md.Note("No page was fetched.")
		} else {
			md.Tip("The crawl completed.")
		}
	}
	md.PlainText("")
}

// writeLinks writes a mermaid pie chart of internal vs external links.
func (w *MarkdownWriter) writeLinks(md *markdown.Markdown, r *Report) {
	internal, external := r.Links()
	if internal+external == 0 {
		return
	}

	md.H2("Links")
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Discovered Links"),
		piechart.WithShowData(true),
	)
	if internal > 0 {
		chart.LabelAndIntValue("Internal", uint64(internal))
	}
	if external > 0 {
		chart.LabelAndIntValue("External", uint64(external))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeSites(md *markdown.Markdown, r *Report) {
	md.H2("Sites")
	md.PlainText("")

	rows, hidden := w.sites(r)
	if len(rows) == 0 {
		md.PlainText("No sites fetched.")
		md.PlainText("")
		return
	}

	table := make([][]string, len(rows))
	for i, row := range rows {
		table[i] = []string{
			"`" + row.Domain + "`", row.Title, row.Route, row.Pages, row.Failures,
			row.Internal, row.External, row.Ratio, row.Depth, row.Size,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Domain", "Title", "Route", "Pages", "Failures", "Internal", "External", "Ratio", "Depth", "Size"},
		Rows:   table,
	})
	md.PlainText("")
	if hidden > 0 {
		md.PlainTextf("*%d more sites not shown.*", hidden)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [torspider](https://github.com/nao1215/torspider)*")
}
