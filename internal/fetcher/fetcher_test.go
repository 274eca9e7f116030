package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/nao1215/torspider/internal/link"
	"github.com/nao1215/torspider/internal/model"
	"github.com/nao1215/torspider/internal/tor"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustURL(t *testing.T, raw string) model.URL {
	t.Helper()
	u, err := link.Canonicalize(raw)
	if err != nil {
		t.Fatalf("Canonicalize(%q): %v", raw, err)
	}
	return u
}

func expectFailure(t *testing.T, err error, kind model.FailureKind) *model.FetchFailure {
	t.Helper()
	f, ok := model.AsFetchFailure(err)
	if !ok {
		t.Fatalf("error %v is not a FetchFailure", err)
	}
	if f.Kind != kind {
		t.Errorf("failure kind = %v, expected %v (%v)", f.Kind, kind, f.Err)
	}
	return f
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return fn(req)
}

// TestFetchDirect tests a plain successful fetch.
func TestFetchDirect(t *testing.T) {
	t.Parallel()

	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, "<html><a href=\"/about\">about</a></html>")
	}))
	defer srv.Close()

	f := New(WithLogger(quietLogger()))
	u := mustURL(t, srv.URL+"/page")

	result, err := f.Fetch(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}

	if result.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", result.StatusCode)
	}
	if result.ContentType != "text/html" {
		t.Errorf("ContentType = %q, expected text/html", result.ContentType)
	}
	if !strings.Contains(string(result.Body), "/about") {
		t.Errorf("unexpected body %q", result.Body)
	}
	if result.Proxied {
		t.Error("direct fetch reported as proxied")
	}
	if result.Redirected() {
		t.Errorf("unexpected redirect to %q", result.FinalURL.Key)
	}
	if result.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}

	got := <-headers

	if got.Get("User-Agent") != DefaultUserAgent {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
	if got.Get("Accept-Encoding") != acceptEncoding {
		t.Errorf("Accept-Encoding = %q", got.Get("Accept-Encoding"))
	}
	if got.Get("Referer") == "" || got.Get("Accept-Language") == "" || got.Get("Accept") == "" {
		t.Errorf("missing browser headers: %v", got)
	}
}

// TestFetchRedirects tests the redirect policy.
func TestFetchRedirects(t *testing.T) {
	t.Parallel()

	var loopHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/middle", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/middle", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final/", http.StatusFound)
	})
	mux.HandleFunc("/final/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "done")
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		n := loopHits.Add(1)
		http.Redirect(w, r, fmt.Sprintf("/loop?n=%d", n), http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Run("follows a short chain", func(t *testing.T) {
		t.Parallel()
		f := New(WithLogger(quietLogger()))
		u := mustURL(t, srv.URL+"/start")

		result, err := f.Fetch(context.Background(), u)
		if err != nil {
			t.Fatal(err)
		}
		if result.StatusCode != http.StatusOK {
			t.Errorf("StatusCode = %d", result.StatusCode)
		}
		if result.URL != u {
			t.Errorf("URL changed to %q", result.URL.Key)
		}
		if want := u.Host() + "/final"; result.FinalURL.Key != want {
			t.Errorf("FinalURL = %q, expected %q", result.FinalURL.Key, want)
		}
		if !result.Redirected() {
			t.Error("expected Redirected() to be true")
		}
	})

	t.Run("stops at the limit", func(t *testing.T) {
		t.Parallel()
		f := New(WithLogger(quietLogger()), WithMaxRedirects(5))

		result, err := f.Fetch(context.Background(), mustURL(t, srv.URL+"/loop"))
		if err != nil {
			t.Fatal(err)
		}
		if result.StatusCode != http.StatusFound {
			t.Errorf("StatusCode = %d, expected the last redirect response", result.StatusCode)
		}
		if hits := loopHits.Load(); hits != 6 {
			t.Errorf("server saw %d requests, expected 6", hits)
		}
	})
}

// TestFetchTimeout tests that a slow server produces a timeout failure.
func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := New(WithLogger(quietLogger()), WithTimeout(50*time.Millisecond))
	_, err := f.Fetch(context.Background(), mustURL(t, srv.URL))
	expectFailure(t, err, model.FailureTimeout)
}

// TestFetchConnectionRefused tests a connection failure.
func TestFetchConnectionRefused(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	f := New(WithLogger(quietLogger()))
	_, err = f.Fetch(context.Background(), mustURL(t, "http://"+addr))
	expectFailure(t, err, model.FailureConnection)
}

// TestFetchDecoding tests content-encoding support.
func TestFetchDecoding(t *testing.T) {
	t.Parallel()

	const page = "<html><body>compressed page</body></html>"

	encoders := map[string]func(io.Writer) io.WriteCloser{
		"gzip": func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) },
		"br":   func(w io.Writer) io.WriteCloser { return brotli.NewWriter(w) },
		"deflate": func(w io.Writer) io.WriteCloser {
			return zlib.NewWriter(w)
		},
		"raw-deflate": func(w io.Writer) io.WriteCloser {
			fw, _ := flate.NewWriter(w, flate.DefaultCompression)
			return fw
		},
	}

	for name, newWriter := range encoders {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			w := newWriter(&buf)
			_, _ = io.WriteString(w, page)
			_ = w.Close()

			encoding := name
			if name == "raw-deflate" {
				encoding = "deflate"
			}
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Encoding", encoding)
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write(buf.Bytes())
			}))
			defer srv.Close()

			result, err := New(WithLogger(quietLogger())).Fetch(context.Background(), mustURL(t, srv.URL))
			if err != nil {
				t.Fatal(err)
			}
			if string(result.Body) != page {
				t.Errorf("Body = %q, expected %q", result.Body, page)
			}
		})
	}
}

// TestFetchBodyLimit tests the body size cap.
func TestFetchBodyLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("x", 100))
	}))
	defer srv.Close()

	result, err := New(WithLogger(quietLogger()), WithMaxBodySize(10)).Fetch(context.Background(), mustURL(t, srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Body) != 10 {
		t.Errorf("body length = %d, expected 10", len(result.Body))
	}
}

// TestRoute tests transport selection by domain suffix.
func TestRoute(t *testing.T) {
	t.Parallel()

	def := New()
	custom := New(WithProxySuffixes("onion", ".i2p", " "))

	testCases := []struct {
		key     string
		fetcher *Fetcher
		route   Route
	}{
		{"abc.onion/x", def, RouteProxy},
		{"www.abc.onion:8080", def, RouteProxy},
		{"example.com", def, RouteDirect},
		{"onion.example.com", def, RouteDirect},
		{"site.i2p", def, RouteDirect},
		{"site.i2p", custom, RouteProxy},
		{"abc.onion", custom, RouteProxy},
	}

	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			t.Parallel()
			if got := tc.fetcher.Route(model.URL{Key: tc.key}); got != tc.route {
				t.Errorf("Route(%q) = %v, expected %v", tc.key, got, tc.route)
			}
		})
	}
}

// TestFetchProxied tests that onion URLs use the proxied transport.
func TestFetchProxied(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		seen []*http.Request
	)
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"text/html"}},
			Body:       io.NopCloser(strings.NewReader("<html>hidden</html>")),
			Request:    req,
		}, nil
	})
	direct := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("direct route must not be used")
	})

	f := New(WithLogger(quietLogger()), WithProxyTransport(rt), WithDirectTransport(direct))
	result, err := f.Fetch(context.Background(), model.URL{Key: "abc.onion/x", Scheme: "http"})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Proxied {
		t.Error("expected Proxied to be true")
	}
	if len(seen) != 1 {
		t.Fatalf("proxy transport saw %d requests", len(seen))
	}
	if ae := seen[0].Header.Get("Accept-Encoding"); ae != "" {
		t.Errorf("proxied request asked for compression: %q", ae)
	}
	if seen[0].URL.String() != "http://abc.onion/x" {
		t.Errorf("request URL = %q", seen[0].URL)
	}
}

// TestFetchProxyFailures tests proxy failure classification.
func TestFetchProxyFailures(t *testing.T) {
	t.Parallel()

	t.Run("no proxy configured", func(t *testing.T) {
		t.Parallel()
		_, err := New(WithLogger(quietLogger())).Fetch(context.Background(), model.URL{Key: "abc.onion"})
		f := expectFailure(t, err, model.FailureProxy)
		if !errors.Is(f, ErrNoProxy) {
			t.Errorf("expected ErrNoProxy, got %v", f.Err)
		}
	})

	t.Run("proxy not running", func(t *testing.T) {
		t.Parallel()
		listener, err := net.Listen("tcp", "127.0.0.1:0") //nolint:noctx // test code
		if err != nil {
			t.Fatal(err)
		}
		addr := listener.Addr().String()
		_ = listener.Close()

		client, err := tor.NewClient(addr)
		if err != nil {
			t.Fatal(err)
		}
		f := New(WithLogger(quietLogger()), WithTorClient(client))
		_, err = f.Fetch(context.Background(), model.URL{Key: "abc.onion"})
		expectFailure(t, err, model.FailureProxy)
	})
}

// TestFetchSiteOverrides tests per-site headers and cookies.
func TestFetchSiteOverrides(t *testing.T) {
	t.Parallel()

	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
	}))
	defer srv.Close()

	overrides := func(host string) (map[string]string, string) {
		if host != "127.0.0.1" {
			return nil, ""
		}
		return map[string]string{"X-Api-Key": "k", "User-Agent": "custom"}, "session=abc"
	}

	f := New(WithLogger(quietLogger()), WithSiteOverrides(overrides))
	if _, err := f.Fetch(context.Background(), mustURL(t, srv.URL)); err != nil {
		t.Fatal(err)
	}
	got := <-headers
	if got.Get("X-Api-Key") != "k" {
		t.Errorf("X-Api-Key = %q", got.Get("X-Api-Key"))
	}
	if got.Get("User-Agent") != "custom" {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
	if got.Get("Cookie") != "session=abc" {
		t.Errorf("Cookie = %q", got.Get("Cookie"))
	}
}

// TestClassify tests error classification.
func TestClassify(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		kind model.FailureKind
	}{
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), model.FailureTimeout},
		{"proxy down", fmt.Errorf("dial: %w", tor.ErrProxyCannotConnect), model.FailureProxy},
		{"proxy refused", fmt.Errorf("dial: %w", tor.ErrProxyRequestFailed), model.FailureProxy},
		{"reset", errors.New("connection reset by peer"), model.FailureConnection},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tc.err); got != tc.kind {
				t.Errorf("Classify() = %v, expected %v", got, tc.kind)
			}
		})
	}
}

// TestMediaType tests Content-Type parsing.
func TestMediaType(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"text/html; charset=utf-8": "text/html",
		"TEXT/HTML":                "text/html",
		"":                         "",
		"text/html;;bad":           "text/html",
	}
	for in, want := range testCases {
		if got := mediaType(in); got != want {
			t.Errorf("mediaType(%q) = %q, expected %q", in, got, want)
		}
	}
}
