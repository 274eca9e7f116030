package report

import (
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/torspider/internal/crawler"
)

// siteRow is one site formatted for a table.
type siteRow struct {
	Domain   string
	Title    string
	Pages    string
	Failures string
	Internal string
	External string
	Ratio    string
	Depth    string
	Size     string
	Route    string
}

func newSiteRow(s crawler.SiteStats) siteRow {
	route := "direct"
	if s.Proxied {
		route = "tor"
	}
	title := s.Title
	if title == "" {
		title = "-"
	}
	return siteRow{
		Domain:   s.Domain,
		Title:    truncateString(title, 40),
		Pages:    strconv.Itoa(s.Pages),
		Failures: strconv.Itoa(s.Failures),
		Internal: strconv.Itoa(s.InternalLinks),
		External: strconv.Itoa(s.ExternalLinks),
		Ratio:    strconv.FormatFloat(s.LinkRatio(), 'f', 1, 64),
		Depth:    strconv.Itoa(s.MaxDepth),
		Size:     humanize.Bytes(uint64(max(s.Bytes, 0))), //nolint:gosec // clamped above
		Route:    route,
	}
}

// truncateString truncates s to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
