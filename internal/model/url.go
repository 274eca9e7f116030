package model

import "strings"

// DefaultScheme is used when a URL carries no scheme information.
const DefaultScheme = "http"

// URL is a crawl target in canonical form.
//
// Two URLs that differ only by scheme or by a trailing slash share the same Key,
// so Key is the identity used for deduplication and as the archive id. Scheme is
// kept next to it because the fetcher still needs it to build a request.
type URL struct {
	// Key is the scheme-stripped canonical form, e.g. "example.com/about".
	Key string `json:"key"`

	// Scheme is "http" or "https". It is not part of the identity.
	Scheme string `json:"scheme"`
}

// String returns the fetchable form "scheme://key".
func (u URL) String() string {
	scheme := u.Scheme
	if scheme == "" {
		scheme = DefaultScheme
	}
	return scheme + "://" + u.Key
}

// IsZero reports whether u is the zero URL.
func (u URL) IsZero() bool {
	return u.Key == ""
}

// Host returns the authority part of the key (host, optionally with port).
func (u URL) Host() string {
	if i := strings.IndexAny(u.Key, "/?"); i >= 0 {
		return u.Key[:i]
	}
	return u.Key
}

// Path returns the part of the key after the authority, without the query.
// It is empty for a site root.
func (u URL) Path() string {
	rest := strings.TrimPrefix(u.Key, u.Host())
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// Depth returns how deep the page sits in its site: 0 for the root,
// 1 for "host/a", 2 for "host/a/b" and so on.
func (u URL) Depth() int {
	p := strings.Trim(u.Path(), "/")
	if p == "" {
		return 0
	}
	return strings.Count(p, "/") + 1
}

// Kind tells whether a link stays on the page's site or leaves it.
type Kind int

const (
	// KindInternal is a link whose target shares the source page's site.
	KindInternal Kind = iota

	// KindExternal is a link to a different site.
	KindExternal
)

// String returns "internal" or "external".
func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Entry is a URL waiting in the frontier.
// Ownership moves to the worker that dequeues it for the duration of the fetch.
type Entry struct {
	// URL is the target to fetch.
	URL URL

	// Kind selects the queue the entry lives in.
	Kind Kind

	// Depth is the number of hops from the seed that led here.
	Depth int

	// Referrer is the page the link was found on.
	// Zero for seeds.
	Referrer URL
}
