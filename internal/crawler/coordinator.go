package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/torspider/internal/fetcher"
	"github.com/nao1215/torspider/internal/frontier"
	"github.com/nao1215/torspider/internal/link"
	"github.com/nao1215/torspider/internal/model"
	"github.com/nao1215/torspider/internal/tor"
	"golang.org/x/sync/errgroup"
)

// Defaults for a Coordinator.
const (
	DefaultWorkers = 20

	// DefaultRatioLimit stops expanding a site once it has this many internal
	// links per external link. Sites that only link to themselves (calendars,
	// generated archives) would otherwise swallow the crawl.
	DefaultRatioLimit = 200
)

// Fetcher retrieves pages. *fetcher.Fetcher implements it.
type Fetcher interface {
	// Fetch returns the page or a *model.FetchFailure.
	Fetch(ctx context.Context, u model.URL) (*model.FetchResult, error)

	// Route returns the network path u would be fetched through.
	Route(u model.URL) fetcher.Route
}

// Archiver receives fetched pages. *archive.Archiver implements it.
type Archiver interface {
	Add(ctx context.Context, rec model.Record) error
}

// Gate is the shared visited-set. *dedup.Gate implements it.
type Gate interface {
	TryClaim(ctx context.Context, u model.URL) (bool, error)
	Fetched(ctx context.Context, u model.URL) (bool, error)
	MarkFetched(ctx context.Context, u model.URL) error
	MarkFailed(ctx context.Context, u model.URL) error
	AddPending(ctx context.Context, u model.URL) error
	RemovePending(ctx context.Context, u model.URL) error
	PopPending(ctx context.Context, n int) ([]string, error)
}

// Observer is told about crawl progress. *metrics.Metrics implements it.
type Observer interface {
	ObserveFetch(route string, size int)
	ObserveFailure(kind model.FailureKind)
	ObserveLinks(kind model.Kind, discovered, claimed int)
	ObserveFrontier(internal, external int)
}

// Stats is a snapshot of a crawl's progress.
type Stats struct {
	Session    string        `json:"session"`
	Dispatched int64         `json:"dispatched"`
	Fetched    int64         `json:"fetched"`
	Failed     int64         `json:"failed"`
	Claimed    int64         `json:"claimed"`
	Elapsed    time.Duration `json:"elapsed"`
	Sites      []SiteStats   `json:"sites"`
}

// Coordinator runs the worker pool over a frontier.
type Coordinator struct {
	frontier  *frontier.Frontier
	fetcher   Fetcher
	gate      Gate
	archiver  Archiver
	extractor *link.Extractor

	workers     int
	maxPages    int64
	maxDuration time.Duration
	torOnly     bool
	parents     bool
	ratioLimit  float64
	session     string
	logger      *slog.Logger
	observer    Observer

	sites      *siteRegistry
	budget     atomic.Int64
	dispatched atomic.Int64
	fetched    atomic.Int64
	failed     atomic.Int64
	claimed    atomic.Int64

	mu       sync.Mutex
	started  time.Time
	finished time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWorkers sets the number of concurrent workers.
func WithWorkers(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithMaxPages stops dispatching after n entries. Zero means no limit.
func WithMaxPages(n int) Option {
	return func(c *Coordinator) {
		if n >= 0 {
			c.maxPages = int64(n)
		}
	}
}

// WithMaxDuration stops dispatching after d. Zero means no limit.
func WithMaxDuration(d time.Duration) Option {
	return func(c *Coordinator) {
		c.maxDuration = d
	}
}

// WithTorOnly drops every URL that would not go through the proxy.
func WithTorOnly(enabled bool) Option {
	return func(c *Coordinator) {
		c.torOnly = enabled
	}
}

// WithParentURLs also queues the ancestors of every fetched page
// ("a.b/x/y" queues "a.b" and "a.b/x").
func WithParentURLs(enabled bool) Option {
	return func(c *Coordinator) {
		c.parents = enabled
	}
}

// WithRatioLimit sets the internal/external link ratio at which a site stops
// being expanded. Zero disables the check.
func WithRatioLimit(limit float64) Option {
	return func(c *Coordinator) {
		if limit >= 0 {
			c.ratioLimit = limit
		}
	}
}

// WithSession sets the session id stamped on archived records.
func WithSession(id string) Option {
	return func(c *Coordinator) {
		if id != "" {
			c.session = id
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithObserver sets the progress observer.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		c.observer = o
	}
}

// New creates a Coordinator. All four collaborators are required.
func New(front *frontier.Frontier, f Fetcher, gate Gate, arch Archiver, opts ...Option) *Coordinator {
	c := &Coordinator{
		frontier:   front,
		fetcher:    f,
		gate:       gate,
		archiver:   arch,
		workers:    DefaultWorkers,
		ratioLimit: DefaultRatioLimit,
		session:    uuid.NewString(),
		logger:     slog.Default(),
		observer:   nopObserver{},
		sites:      newSiteRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.extractor = link.NewExtractor(link.WithLogger(c.logger))
	return c
}

// Session returns the crawl session id.
func (c *Coordinator) Session() string {
	return c.session
}

// Seed canonicalizes, claims and enqueues the given URLs as external entries.
// Malformed URLs, invalid onion addresses and URLs filtered by tor-only mode
// are logged and skipped. It returns the number of entries enqueued.
func (c *Coordinator) Seed(ctx context.Context, urls []string) (int, error) {
	n := 0
	for _, raw := range urls {
		u, err := link.Canonicalize(raw)
		if err != nil {
			c.logger.Warn("skipping seed", "url", raw, "error", err)
			continue
		}
		if host := link.Domain(u); tor.IsOnionHost(host) {
			if err := tor.ValidateHost(host); err != nil {
				c.logger.Warn("skipping seed", "url", raw, "error", err)
				continue
			}
		}

		ok, err := c.admit(ctx, u, model.Entry{URL: u, Kind: model.KindExternal})
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	c.observer.ObserveFrontier(c.frontier.Len(model.KindInternal), c.frontier.Len(model.KindExternal))
	return n, nil
}

// Resume moves up to n URLs from the persisted pending set back into the
// frontier. They were claimed by an earlier session and are not claimed again.
// URLs already marked fetched are dropped.
func (c *Coordinator) Resume(ctx context.Context, n int) (int, error) {
	pending, err := c.gate.PopPending(ctx, n)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, raw := range pending {
		u, err := link.Canonicalize(raw)
		if err != nil {
			c.logger.Warn("dropping pending url", "url", raw, "error", err)
			continue
		}
		if c.torOnly && c.fetcher.Route(u) != fetcher.RouteProxy {
			continue
		}
		done, err := c.gate.Fetched(ctx, u)
		if err != nil {
			return count, err
		}
		if done {
			c.logger.Debug("skipping fetched pending url", "url", u.String())
			continue
		}
		// Popping removed it; keep it persisted until it is fetched.
		if err := c.gate.AddPending(ctx, u); err != nil {
			return count, err
		}
		c.frontier.Push(model.Entry{URL: u, Kind: model.KindExternal})
		count++
	}
	c.logger.Info("resumed pending urls", "count", count)
	return count, nil
}

// Run starts the workers and blocks until the frontier drains, a budget is
// spent, ctx is canceled or the dedup cache fails. Only the last case is an
// error; it wraps dedup.ErrCacheUnavailable.
//
// Canceling ctx stops dequeuing. Entries already dequeued are fetched and
// archived to the end, bounded by the fetch timeout.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.maxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.maxDuration)
		defer cancel()
	}

	c.mu.Lock()
	c.started = time.Now()
	c.mu.Unlock()

	c.logger.Info("crawl started",
		"session", c.session,
		"workers", c.workers,
		"queued", c.frontier.Len(model.KindInternal)+c.frontier.Len(model.KindExternal),
	)

	g, gctx := errgroup.WithContext(ctx)
	for id := range c.workers {
		g.Go(func() error {
			return c.work(gctx, id)
		})
	}
	err := g.Wait()

	c.mu.Lock()
	c.finished = time.Now()
	elapsed := c.finished.Sub(c.started)
	c.mu.Unlock()

	c.logger.Info("crawl finished",
		"session", c.session,
		"fetched", c.fetched.Load(),
		"failed", c.failed.Load(),
		"claimed", c.claimed.Load(),
		"elapsed", elapsed,
	)
	if err != nil {
		return fmt.Errorf("crawl halted: %w", err)
	}
	return nil
}

// work is the loop of one worker.
func (c *Coordinator) work(ctx context.Context, id int) error {
	logger := c.logger.With("worker", id)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if !c.reserve() {
			logger.Debug("page budget spent")
			return nil
		}

		e, err := c.frontier.Next(ctx)
		if err != nil {
			c.budget.Add(-1)
			if errors.Is(err, frontier.ErrDrained) || ctx.Err() != nil {
				logger.Debug("worker stopping", "reason", err)
				return nil
			}
			return err
		}

		err = c.Process(ctx, e)
		c.frontier.Done()
		if err != nil {
			logger.Error("stopping crawl", "url", e.URL.String(), "error", err)
			return err
		}
	}
}

// reserve takes one page from the budget.
func (c *Coordinator) reserve() bool {
	n := c.budget.Add(1)
	if c.maxPages > 0 && n > c.maxPages {
		c.budget.Add(-1)
		return false
	}
	return true
}

// Process runs one iteration of the worker loop for e: fetch, archive,
// extract, claim and enqueue. Fetch and store failures are handled here and
// do not produce an error; only a dedup cache failure does.
//
// Once called, the entry is processed to the end even if ctx is canceled.
func (c *Coordinator) Process(ctx context.Context, e model.Entry) error {
	ctx = context.WithoutCancel(ctx)
	c.dispatched.Add(1)

	result, err := c.fetcher.Fetch(ctx, e.URL)
	if err != nil {
		return c.fail(ctx, e, err)
	}
	c.fetched.Add(1)

	domain := link.Domain(e.URL)
	c.sites.page(domain, e.Depth, len(result.Body), result.Proxied)
	c.observer.ObserveFetch(routeName(result.Proxied), len(result.Body))

	if err := c.archiver.Add(ctx, model.NewRecord(result, c.session)); err != nil {
		// The batch stays buffered and is retried on the next flush.
		c.logger.Error("archive flush failed", "url", e.URL.String(), "error", err)
	}

	if err := c.expand(ctx, e, domain, result); err != nil {
		return err
	}
	return c.gate.MarkFetched(ctx, e.URL)
}

// fail records a fetch failure. The URL stays claimed.
func (c *Coordinator) fail(ctx context.Context, e model.Entry, err error) error {
	c.failed.Add(1)

	kind := model.FailureConnection
	if ff, ok := model.AsFetchFailure(err); ok {
		kind = ff.Kind
	}
	c.logger.Warn("fetch failed", "url", e.URL.String(), "kind", kind.String(), "error", err)
	c.sites.failure(link.Domain(e.URL))
	c.observer.ObserveFailure(kind)

	if err := c.gate.MarkFailed(ctx, e.URL); err != nil {
		return err
	}
	return c.gate.RemovePending(ctx, e.URL)
}

// expand extracts the page's links and enqueues the ones this call claims.
// Links are resolved against the final URL after redirects.
func (c *Coordinator) expand(ctx context.Context, e model.Entry, domain string, result *model.FetchResult) error {
	if !result.IsHTML() || len(result.Body) == 0 {
		return nil
	}
	doc, err := link.Parse(result.Body)
	if err != nil {
		c.logger.Debug("not parsing page", "url", e.URL.String(), "error", err)
		return nil
	}
	c.sites.title(domain, link.Title(doc))

	page := result.FinalURL
	if page.IsZero() {
		page = e.URL
	}
	internal, external := link.Collect(c.extractor.Extract(doc, page))
	if c.parents {
		internal = append(internal, link.ParentURLs(page)...)
	}

	ratio := c.sites.links(domain, len(internal), len(external))
	if c.ratioLimit > 0 && ratio >= c.ratioLimit {
		c.logger.Debug("site link ratio reached, not expanding", "site", domain, "ratio", ratio)
		return nil
	}

	if err := c.enqueue(ctx, e, model.KindInternal, internal); err != nil {
		return err
	}
	if err := c.enqueue(ctx, e, model.KindExternal, external); err != nil {
		return err
	}
	c.observer.ObserveFrontier(c.frontier.Len(model.KindInternal), c.frontier.Len(model.KindExternal))
	return nil
}

// enqueue admits the links of one kind found on the page of e.
func (c *Coordinator) enqueue(ctx context.Context, e model.Entry, kind model.Kind, urls []model.URL) error {
	claimed := 0
	for _, u := range urls {
		ok, err := c.admit(ctx, u, model.Entry{URL: u, Kind: kind, Depth: e.Depth + 1, Referrer: e.URL})
		if err != nil {
			return err
		}
		if ok {
			claimed++
		}
	}
	c.observer.ObserveLinks(kind, len(urls), claimed)
	return nil
}

// admit claims u and pushes entry when the claim succeeds.
func (c *Coordinator) admit(ctx context.Context, u model.URL, entry model.Entry) (bool, error) {
	if c.torOnly && c.fetcher.Route(u) != fetcher.RouteProxy {
		return false, nil
	}
	ok, err := c.gate.TryClaim(ctx, u)
	if err != nil || !ok {
		return false, err
	}
	c.claimed.Add(1)
	if err := c.gate.AddPending(ctx, u); err != nil {
		return false, err
	}
	c.frontier.Push(entry)
	return true, nil
}

// Stats returns a snapshot of the crawl so far.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	var elapsed time.Duration
	switch {
	case !c.finished.IsZero():
		elapsed = c.finished.Sub(c.started)
	case !c.started.IsZero():
		elapsed = time.Since(c.started)
	}
	c.mu.Unlock()

	return Stats{
		Session:    c.session,
		Dispatched: c.dispatched.Load(),
		Fetched:    c.fetched.Load(),
		Failed:     c.failed.Load(),
		Claimed:    c.claimed.Load(),
		Elapsed:    elapsed,
		Sites:      c.sites.snapshot(),
	}
}

func routeName(proxied bool) string {
	if proxied {
		return fetcher.RouteProxy.String()
	}
	return fetcher.RouteDirect.String()
}

type nopObserver struct{}

func (nopObserver) ObserveFetch(string, int)          {}
func (nopObserver) ObserveFailure(model.FailureKind)  {}
func (nopObserver) ObserveLinks(model.Kind, int, int) {}
func (nopObserver) ObserveFrontier(int, int)          {}
