package config

import (
	"maps"
	"strings"
)

// SiteConfig holds request overrides for one site.
type SiteConfig struct {
	// Cookie is an HTTP cookie to send to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers to send to this site.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// GetSiteConfig returns the configuration for host, site-specific values
// merged over the defaults. Lookups ignore case and a trailing port, and
// fall back to the parent domains of host ("a.example.onion" uses the
// "example.onion" entry when it has none of its own).
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := SiteConfig{
		Cookie:  cf.Defaults.Cookie,
		Headers: maps.Clone(cf.Defaults.Headers),
	}

	site, ok := cf.lookupSite(host)
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	return result
}

func (cf *File) lookupSite(host string) (SiteConfig, bool) {
	if len(cf.Sites) == 0 {
		return SiteConfig{}, false
	}
	host = strings.ToLower(host)
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}
	for name := host; name != ""; {
		for key, sc := range cf.Sites {
			if strings.EqualFold(key, name) {
				return sc, true
			}
		}
		_, rest, found := strings.Cut(name, ".")
		if !found || !strings.Contains(rest, ".") {
			break
		}
		name = rest
	}
	return SiteConfig{}, false
}

// Overrides adapts the file to the fetcher's per-site override hook.
func (cf *File) Overrides(host string) (map[string]string, string) {
	sc := cf.GetSiteConfig(host)
	return sc.Headers, sc.Cookie
}
