// Package report renders the summary of a finished crawl.
//
// This package contains writers for different output formats:
//   - SimpleWriter: plain text for terminal display
//   - MarkdownWriter: tables and a link chart for sharing
//   - JSONWriter: structured output for tool integration
//
// Design decision: We keep the report separate from the crawler's Stats so
// that output-only fields (status, archive totals, version) do not leak into
// the coordinator.
package report
