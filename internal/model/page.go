package model

import (
	"net/http"
	"strings"
	"time"
)

// FetchResult is the outcome of a successful fetch.
// It is produced once per fetch and is not modified afterwards; the worker that
// produced it owns it until the record is handed to the archiver.
type FetchResult struct {
	// URL is the requested target.
	URL URL

	// FinalURL is where the request ended after redirects.
	// Equal to URL when no redirect was followed.
	FinalURL URL

	// StatusCode is the HTTP response status code.
	StatusCode int

	// Header contains the response headers.
	Header http.Header

	// ContentType is the media type of the response, without parameters.
	ContentType string

	// Body holds the decoded response body, capped by the fetcher's size limit.
	Body []byte

	// FetchedAt is when the response was received.
	FetchedAt time.Time

	// Proxied is true when the request went through the SOCKS transport.
	Proxied bool
}

// IsHTML returns true if the content type indicates HTML.
// An empty content type is treated as HTML because many hidden services
// omit the header entirely.
func (r *FetchResult) IsHTML() bool {
	switch strings.ToLower(r.ContentType) {
	case "", "text/html", "application/xhtml+xml":
		return true
	default:
		return false
	}
}

// Redirected reports whether the final URL differs from the requested one.
func (r *FetchResult) Redirected() bool {
	return !r.FinalURL.IsZero() && r.FinalURL.Key != r.URL.Key
}
