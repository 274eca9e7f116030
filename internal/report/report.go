package report

import (
	"time"

	"github.com/nao1215/torspider/internal/crawler"
)

// Status is how a crawl ended.
type Status string

const (
	// StatusComplete means the frontier drained or a budget ran out.
	StatusComplete Status = "complete"
	// StatusInterrupted means the crawl was stopped by a signal.
	StatusInterrupted Status = "interrupted"
	// StatusHalted means the crawl stopped on an unrecoverable error.
	StatusHalted Status = "halted"
)

// Report is the outcome of one crawl.
type Report struct {
	Version    string              `json:"version,omitempty"`
	Session    string              `json:"session"`
	Status     Status              `json:"status"`
	Error      string              `json:"error,omitempty"`
	FinishedAt time.Time           `json:"finished_at"`
	Elapsed    time.Duration       `json:"elapsed_ns"`
	Dispatched int64               `json:"dispatched"`
	Fetched    int64               `json:"fetched"`
	Failed     int64               `json:"failed"`
	Claimed    int64               `json:"claimed"`
	Archived   int                 `json:"archived"`
	Rejected   int                 `json:"rejected"`
	Sites      []crawler.SiteStats `json:"sites"`
}

// Option configures a Report.
type Option func(*Report)

// WithVersion records the version of the binary that ran the crawl.
func WithVersion(v string) Option {
	return func(r *Report) {
		r.Version = v
	}
}

// WithArchiveTotals records how many records reached the store and how many
// it rejected.
func WithArchiveTotals(inserted, rejected int) Option {
	return func(r *Report) {
		r.Archived = inserted
		r.Rejected = rejected
	}
}

// WithInterrupted marks the crawl as stopped by the user.
func WithInterrupted(interrupted bool) Option {
	return func(r *Report) {
		if interrupted && r.Status == StatusComplete {
			r.Status = StatusInterrupted
		}
	}
}

// WithError records the error Run returned. A nil error changes nothing.
func WithError(err error) Option {
	return func(r *Report) {
		if err == nil {
			return
		}
		r.Status = StatusHalted
		r.Error = err.Error()
	}
}

// New builds a Report from the coordinator's final statistics.
func New(stats crawler.Stats, opts ...Option) *Report {
	r := &Report{
		Session:    stats.Session,
		Status:     StatusComplete,
		FinishedAt: time.Now(),
		Elapsed:    stats.Elapsed,
		Dispatched: stats.Dispatched,
		Fetched:    stats.Fetched,
		Failed:     stats.Failed,
		Claimed:    stats.Claimed,
		Sites:      stats.Sites,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Sites == nil {
		r.Sites = []crawler.SiteStats{}
	}
	return r
}

// Links returns the internal and external link counts over all sites.
func (r *Report) Links() (internal, external int) {
	for _, s := range r.Sites {
		internal += s.InternalLinks
		external += s.ExternalLinks
	}
	return internal, external
}

// Bytes returns the total body size fetched.
func (r *Report) Bytes() int64 {
	var n int64
	for _, s := range r.Sites {
		n += s.Bytes
	}
	return n
}

// ProxiedSites returns the number of sites fetched through the proxy.
func (r *Report) ProxiedSites() int {
	n := 0
	for _, s := range r.Sites {
		if s.Proxied {
			n++
		}
	}
	return n
}
