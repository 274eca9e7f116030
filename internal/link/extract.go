package link

import (
	"bytes"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/torspider/internal/model"
	"golang.org/x/net/html"
)

// Link is a classified link found on a page.
type Link struct {
	// URL is the canonical target.
	URL model.URL

	// Kind tells whether the target is on the page's site.
	Kind model.Kind

	// Raw is the href value as written in the document.
	Raw string
}

// Parse builds a queryable document from raw page bytes.
// The tokenizer of golang.org/x/net/html accepts malformed markup, so an error
// here is rare and usually means the body is not text at all.
func Parse(body []byte) (*goquery.Document, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// Title returns the trimmed text of the first <title> element.
func Title(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// Extractor yields the links of parsed pages.
type Extractor struct {
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used to report skipped links.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the distinct links of doc in document order.
//
// Anchors without href are ignored. A malformed href is logged at debug level
// and skipped; it never stops the walk. Each canonical target is yielded once
// per call even when the page repeats it.
//
// The sequence is single-pass: ranging over it a second time yields nothing.
// Extracting again requires a new call.
func (e *Extractor) Extract(doc *goquery.Document, page model.URL) iter.Seq[Link] {
	var consumed atomic.Bool
	return func(yield func(Link) bool) {
		if !consumed.CompareAndSwap(false, true) {
			return
		}

		seen := make(map[string]struct{})
		doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			raw, _ := s.Attr("href")
			u, kind, err := Classify(page, raw)
			if err != nil {
				e.logger.Debug("skipping link", "page", page.Key, "href", raw, "error", err)
				return true
			}
			if _, ok := seen[u.Key]; ok {
				return true
			}
			seen[u.Key] = struct{}{}
			return yield(Link{URL: u, Kind: kind, Raw: raw})
		})
	}
}

// Extract uses a default Extractor.
func Extract(doc *goquery.Document, page model.URL) iter.Seq[Link] {
	return NewExtractor().Extract(doc, page)
}

// Collect drains seq into internal and external targets, preserving order.
func Collect(seq iter.Seq[Link]) (internal, external []model.URL) {
	for l := range seq {
		if l.Kind == model.KindInternal {
			internal = append(internal, l.URL)
		} else {
			external = append(external, l.URL)
		}
	}
	return internal, external
}
