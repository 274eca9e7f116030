package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/nao1215/torspider/internal/link"
	"github.com/nao1215/torspider/internal/model"
	"github.com/nao1215/torspider/internal/tor"
	"golang.org/x/net/publicsuffix"
)

// Default fetch limits.
const (
	DefaultTimeout      = 20 * time.Second
	DefaultMaxRedirects = 5
	DefaultMaxBodySize  = 5 << 20
)

// DefaultProxySuffixes lists the domain suffixes routed through the proxy.
var DefaultProxySuffixes = []string{tor.OnionSuffix}

// ErrNoProxy is the cause of a proxy failure when a URL needs the proxied
// route but no proxy was configured.
var ErrNoProxy = errors.New("no proxy configured for this route")

// Route is the network path a URL is fetched through.
type Route int

const (
	// RouteDirect uses the host's own network.
	RouteDirect Route = iota

	// RouteProxy goes through the SOCKS proxy.
	RouteProxy
)

// String returns "direct" or "proxy".
func (r Route) String() string {
	if r == RouteProxy {
		return "proxy"
	}
	return "direct"
}

// SiteOverrides returns extra headers and a cookie for a host.
// Either may be empty.
type SiteOverrides func(host string) (headers map[string]string, cookie string)

// Fetcher performs GET requests. It is safe for concurrent use.
type Fetcher struct {
	direct   *http.Client
	proxied  *http.Client
	suffixes []string

	timeout      time.Duration
	maxRedirects int
	maxBodySize  int64
	userAgent    string
	overrides    SiteOverrides
	logger       *slog.Logger

	directTransport http.RoundTripper
	proxyTransport  http.RoundTripper
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the hard limit for one fetch, body included.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMaxRedirects sets how many redirects are followed.
// Zero returns the first redirect response as is.
func WithMaxRedirects(n int) Option {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxRedirects = n
		}
	}
}

// WithMaxBodySize caps the number of decoded body bytes kept per page.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithProxySuffixes replaces the list of domain suffixes routed through the proxy.
func WithProxySuffixes(suffixes ...string) Option {
	return func(f *Fetcher) {
		f.suffixes = f.suffixes[:0]
		for _, s := range suffixes {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			if !strings.HasPrefix(s, ".") {
				s = "." + s
			}
			f.suffixes = append(f.suffixes, s)
		}
	}
}

// WithTorClient enables the proxied route through client.
func WithTorClient(client *tor.Client) Option {
	return func(f *Fetcher) {
		f.proxyTransport = client.Transport()
	}
}

// WithProxyTransport sets the proxied route's transport directly.
func WithProxyTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		f.proxyTransport = rt
	}
}

// WithDirectTransport replaces the direct route's transport.
func WithDirectTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		f.directTransport = rt
	}
}

// WithUserAgent replaces the default User-Agent.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithSiteOverrides sets the lookup for per-site headers and cookies.
func WithSiteOverrides(fn SiteOverrides) Option {
	return func(f *Fetcher) {
		f.overrides = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher. Without WithTorClient or WithProxyTransport every
// proxied URL fails with a proxy failure.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		suffixes:     append([]string(nil), DefaultProxySuffixes...),
		timeout:      DefaultTimeout,
		maxRedirects: DefaultMaxRedirects,
		maxBodySize:  DefaultMaxBodySize,
		userAgent:    DefaultUserAgent,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.directTransport == nil {
		f.directTransport = http.DefaultTransport.(*http.Transport).Clone()
	}
	f.direct = f.newClient(f.directTransport)
	if f.proxyTransport != nil {
		f.proxied = f.newClient(f.proxyTransport)
	}
	return f
}

func (f *Fetcher) newClient(rt http.RoundTripper) *http.Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}) //nolint:errcheck // never fails
	maxRedirects := f.maxRedirects
	return &http.Client{
		Transport: rt,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// Route returns the network path for u.
func (f *Fetcher) Route(u model.URL) Route {
	host := link.Domain(u)
	for _, s := range f.suffixes {
		if strings.HasSuffix(host, s) || host == s[1:] {
			return RouteProxy
		}
	}
	return RouteDirect
}

// Timeout returns the per-fetch limit.
func (f *Fetcher) Timeout() time.Duration {
	return f.timeout
}

// Fetch retrieves u. On failure the error is always a *model.FetchFailure.
func (f *Fetcher) Fetch(ctx context.Context, u model.URL) (*model.FetchResult, error) {
	route := f.Route(u)
	client := f.direct
	if route == RouteProxy {
		if f.proxied == nil {
			return nil, &model.FetchFailure{URL: u, Kind: model.FailureProxy, Err: ErrNoProxy}
		}
		client = f.proxied
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &model.FetchFailure{URL: u, Kind: model.FailureConnection, Err: err}
	}
	f.setHeaders(req, route)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, failure(ctx, u, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp, f.maxBodySize)
	if err != nil {
		return nil, failure(ctx, u, err)
	}

	final := u
	if resp.Request != nil && resp.Request.URL != nil {
		if cu, err := link.Canonicalize(resp.Request.URL.String()); err == nil {
			final = cu
		}
	}

	result := &model.FetchResult{
		URL:         u,
		FinalURL:    final,
		StatusCode:  resp.StatusCode,
		Header:      resp.Header.Clone(),
		ContentType: mediaType(resp.Header.Get("Content-Type")),
		Body:        body,
		FetchedAt:   time.Now(),
		Proxied:     route == RouteProxy,
	}

	f.logger.Debug("fetched",
		"url", u.String(),
		"route", route.String(),
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
	)
	return result, nil
}

func (f *Fetcher) setHeaders(req *http.Request, route Route) {
	for k, v := range baseHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", f.userAgent)

	// Setting Accept-Encoding by hand turns off the transport's transparent
	// gzip handling; readBody decodes instead. The proxied transport has
	// compression disabled, so it does not ask for it.
	if route == RouteDirect {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}

	if f.overrides == nil {
		return
	}
	headers, cookie := f.overrides(req.URL.Hostname())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if cookie != "" {
		if existing := req.Header.Get("Cookie"); existing != "" {
			cookie = existing + "; " + cookie
		}
		req.Header.Set("Cookie", cookie)
	}
}

// failure builds the typed failure for err. A fetch whose own deadline has
// passed is a timeout whatever error the transport surfaced.
func failure(ctx context.Context, u model.URL, err error) *model.FetchFailure {
	kind := Classify(err)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = model.FailureTimeout
	}
	return &model.FetchFailure{URL: u, Kind: kind, Err: err}
}

// Classify maps a transport error to a failure kind.
func Classify(err error) model.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.FailureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return model.FailureTimeout
	}
	if errors.Is(err, tor.ErrProxyCannotConnect) ||
		errors.Is(err, tor.ErrProxyRequestFailed) ||
		errors.Is(err, ErrNoProxy) {
		return model.FailureProxy
	}
	return model.FailureConnection
}

// mediaType returns the lowercased media type of a Content-Type value.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// readBody decodes the response body and keeps at most limit bytes.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	r, err := decodedReader(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode body: %w", err)
	}
	defer r.Close()

	body, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}
