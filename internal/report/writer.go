package report

import (
	"io"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Writer defines the interface for report output.
//
// Design decision: We use an interface so the crawl command picks a format
// once and writes to a file or stdout with the same call.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *Report) (int, error)
}

// MultiWriter writes the same report to several Writers.
//
// Design decision: We implement this as a separate type rather than
// using io.MultiWriter because our Writer interface writes reports, not
// raw bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to every Writer and stops on the first error.
func (m *MultiWriter) Write(report *Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output   io.Writer
	maxSites int
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// SiteOption limits the site tables of the text and Markdown writers.
type SiteOption func(*baseWriter)

// WithMaxSites keeps only the n busiest sites in the site table.
// Zero or less shows every site.
func WithMaxSites(n int) SiteOption {
	return func(b *baseWriter) {
		b.maxSites = n
	}
}

// sites returns the sites to render and the number left out.
func (b baseWriter) sites(r *Report) (shown []siteRow, hidden int) {
	all := r.Sites
	if b.maxSites > 0 && len(all) > b.maxSites {
		hidden = len(all) - b.maxSites
		all = all[:b.maxSites]
	}
	shown = make([]siteRow, len(all))
	for i, s := range all {
		shown[i] = newSiteRow(s)
	}
	return shown, hidden
}

// statusLabel renders a Status for humans ("Interrupted").
// cases.Caser is not safe for concurrent use, so one is built per call.
func statusLabel(s Status) string {
	return cases.Title(language.English).String(string(s))
}
