package model

import "testing"

// TestURL tests the accessors of the canonical URL.
func TestURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		url    URL
		str    string
		host   string
		path   string
		depth  int
		isZero bool
	}{
		{"site root", URL{Key: "site-a.test", Scheme: "http"}, "http://site-a.test", "site-a.test", "", 0, false},
		{"one segment", URL{Key: "site-a.test/about", Scheme: "https"}, "https://site-a.test/about", "site-a.test", "/about", 1, false},
		{"two segments", URL{Key: "a.onion/x/y", Scheme: "http"}, "http://a.onion/x/y", "a.onion", "/x/y", 2, false},
		{"query only", URL{Key: "a.test?page=2"}, "http://a.test?page=2", "a.test", "", 0, false},
		{"port kept in host", URL{Key: "127.0.0.1:8080/x?y=1"}, "http://127.0.0.1:8080/x?y=1", "127.0.0.1:8080", "/x", 1, false},
		{"zero", URL{}, "http://", "", "", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.url.String(); got != tc.str {
				t.Errorf("String() = %q, expected %q", got, tc.str)
			}
			if got := tc.url.Host(); got != tc.host {
				t.Errorf("Host() = %q, expected %q", got, tc.host)
			}
			if got := tc.url.Path(); got != tc.path {
				t.Errorf("Path() = %q, expected %q", got, tc.path)
			}
			if got := tc.url.Depth(); got != tc.depth {
				t.Errorf("Depth() = %d, expected %d", got, tc.depth)
			}
			if got := tc.url.IsZero(); got != tc.isZero {
				t.Errorf("IsZero() = %v, expected %v", got, tc.isZero)
			}
		})
	}
}

// TestKindString tests kind labels.
func TestKindString(t *testing.T) {
	t.Parallel()

	if KindInternal.String() != "internal" {
		t.Errorf("KindInternal = %q", KindInternal.String())
	}
	if KindExternal.String() != "external" {
		t.Errorf("KindExternal = %q", KindExternal.String())
	}
	if Kind(7).String() != "unknown" {
		t.Errorf("Kind(7) = %q", Kind(7).String())
	}
}
