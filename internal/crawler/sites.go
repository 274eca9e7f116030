package crawler

import (
	"cmp"
	"slices"
	"sync"
)

// SiteStats aggregates what the crawl saw of one domain.
type SiteStats struct {
	// Domain is the host the pages were served from.
	Domain string `json:"domain"`

	// Title is the first non-empty page title seen on the site.
	Title string `json:"title,omitempty"`

	// Pages is the number of successful fetches.
	Pages int `json:"pages"`

	// Failures is the number of failed fetches.
	Failures int `json:"failures"`

	// Bytes is the total body size fetched.
	Bytes int64 `json:"bytes"`

	// InternalLinks and ExternalLinks count the links found on the site's
	// pages, deduplicated per page.
	InternalLinks int `json:"internal_links"`
	ExternalLinks int `json:"external_links"`

	// MaxDepth is the largest hop count at which the site was reached.
	MaxDepth int `json:"max_depth"`

	// Proxied is true when the site was fetched through the proxy.
	Proxied bool `json:"proxied"`
}

// LinkRatio is internal links per external link, with one added to the
// denominator so sites without external links still get a finite value.
func (s SiteStats) LinkRatio() float64 {
	return float64(s.InternalLinks) / float64(s.ExternalLinks+1)
}

// siteRegistry is a flat domain -> stats map safe for concurrent use.
type siteRegistry struct {
	mu    sync.Mutex
	sites map[string]*SiteStats
}

func newSiteRegistry() *siteRegistry {
	return &siteRegistry{sites: make(map[string]*SiteStats)}
}

// get returns the entry for domain, creating it. r.mu must be held.
func (r *siteRegistry) get(domain string) *SiteStats {
	s, ok := r.sites[domain]
	if !ok {
		s = &SiteStats{Domain: domain}
		r.sites[domain] = s
	}
	return s
}

func (r *siteRegistry) page(domain string, depth int, size int, proxied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(domain)
	s.Pages++
	s.Bytes += int64(size)
	s.MaxDepth = max(s.MaxDepth, depth)
	s.Proxied = s.Proxied || proxied
}

func (r *siteRegistry) title(domain, title string) {
	if title == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if s := r.get(domain); s.Title == "" {
		s.Title = title
	}
}

// links adds link counts and returns the site's updated ratio.
func (r *siteRegistry) links(domain string, internal, external int) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.get(domain)
	s.InternalLinks += internal
	s.ExternalLinks += external
	return s.LinkRatio()
}

func (r *siteRegistry) failure(domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.get(domain).Failures++
}

// snapshot returns copies sorted by pages, most first, then by domain.
func (r *siteRegistry) snapshot() []SiteStats {
	r.mu.Lock()
	out := make([]SiteStats, 0, len(r.sites))
	for _, s := range r.sites {
		out = append(out, *s)
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b SiteStats) int {
		if c := cmp.Compare(b.Pages, a.Pages); c != 0 {
			return c
		}
		return cmp.Compare(a.Domain, b.Domain)
	})
	return out
}
