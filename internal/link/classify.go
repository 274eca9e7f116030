package link

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/nao1215/torspider/internal/model"
	"golang.org/x/net/publicsuffix"
)

// ErrMalformedLink is returned for links that are neither absolute http(s)
// URLs nor root-relative paths. Such links are skipped, never enqueued.
var ErrMalformedLink = errors.New("malformed link")

// defaultPorts maps schemes to the port that is dropped from canonical keys.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Canonicalize parses an absolute http(s) URL into its canonical form.
// A bare "www." prefix is accepted and treated as http.
func Canonicalize(raw string) (model.URL, error) {
	raw = strings.TrimSpace(raw)
	if hasPrefixFold(raw, "www.") {
		raw = "http://" + raw
	}
	if !hasPrefixFold(raw, "http://") && !hasPrefixFold(raw, "https://") {
		return model.URL{}, fmt.Errorf("%w: %q: not an http(s) url", ErrMalformedLink, raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return model.URL{}, fmt.Errorf("%w: %q: %v", ErrMalformedLink, raw, err)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return model.URL{}, fmt.Errorf("%w: %q: missing host", ErrMalformedLink, raw)
	}

	scheme := strings.ToLower(u.Scheme)
	authority := host
	if strings.Contains(host, ":") {
		authority = "[" + host + "]"
	}
	if port := u.Port(); port != "" && port != defaultPorts[scheme] {
		authority += ":" + port
	}

	key := authority + cleanPath(u.EscapedPath())
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}

	return model.URL{Key: key, Scheme: scheme}, nil
}

// cleanPath collapses runs of "/" and strips the trailing one.
func cleanPath(p string) string {
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return strings.TrimRight(p, "/")
}

// Classify resolves raw against the page it was found on.
//
// Root-relative links ("/about") are internal and resolve against the page's
// authority. Network-path links ("//host/x") inherit the page's scheme.
// Absolute links are internal when SameSite reports true for the page's
// authority, external otherwise. Fragments, other schemes and document-relative
// paths return ErrMalformedLink.
func Classify(page model.URL, raw string) (model.URL, model.Kind, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return model.URL{}, 0, fmt.Errorf("%w: empty href", ErrMalformedLink)
	case strings.HasPrefix(raw, "#"):
		return model.URL{}, 0, fmt.Errorf("%w: %q: fragment only", ErrMalformedLink, raw)
	case strings.HasPrefix(raw, "//"):
		raw = schemeOf(page) + ":" + raw
	case strings.HasPrefix(raw, "/"):
		u, err := Canonicalize(schemeOf(page) + "://" + page.Host() + raw)
		if err != nil {
			return model.URL{}, 0, err
		}
		return u, model.KindInternal, nil
	}

	u, err := Canonicalize(raw)
	if err != nil {
		return model.URL{}, 0, err
	}
	if SameSite(page.Host(), u.Host()) {
		return u, model.KindInternal, nil
	}
	return u, model.KindExternal, nil
}

func schemeOf(u model.URL) string {
	if u.Scheme == "" {
		return model.DefaultScheme
	}
	return u.Scheme
}

// Domain returns the lowercased host of u, without port.
func Domain(u model.URL) string {
	host, _ := splitAuthority(u.Host())
	return host
}

// RegistrableDomain reduces a host to its registrable domain
// ("a.b.example.co.uk" -> "example.co.uk"). IP addresses, single-label hosts
// and hosts the suffix list cannot reduce are returned unchanged.
func RegistrableDomain(host string) string {
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return etld1
}

// SameSite reports whether two authorities belong to the same site.
func SameSite(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	hostA, portA := splitAuthority(a)
	hostB, portB := splitAuthority(b)
	if portA != portB {
		return false
	}
	return RegistrableDomain(hostA) == RegistrableDomain(hostB)
}

func splitAuthority(authority string) (host, port string) {
	authority = strings.ToLower(authority)
	if h, p, err := net.SplitHostPort(authority); err == nil {
		return h, p
	}
	return strings.Trim(authority, "[]"), ""
}

// ParentURLs returns every ancestor of u within its site, shortest first.
// For "a.b/x/y" it returns "a.b" and "a.b/x". The query is ignored.
func ParentURLs(u model.URL) []model.URL {
	segments := strings.Split(strings.Trim(u.Path(), "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return nil
	}

	parents := make([]model.URL, 0, len(segments))
	key := u.Host()
	parents = append(parents, model.URL{Key: key, Scheme: u.Scheme})
	for _, seg := range segments[:len(segments)-1] {
		key += "/" + seg
		parents = append(parents, model.URL{Key: key, Scheme: u.Scheme})
	}
	return parents
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
