// Package fetcher retrieves pages over the direct or the proxied route.
//
// Hosts whose domain ends with a proxy suffix (".onion" by default) go
// through the Tor SOCKS transport; everything else is fetched directly.
// Every request carries a fixed browser-like header set, optionally
// extended per site with headers and a session cookie.
//
// A fetch never panics and never returns a bare error: failures come back
// as *model.FetchFailure classified as timeout, proxy or connection. No
// failure is retried.
//
// Redirect policy: up to MaxRedirects hops are followed. When the limit is
// reached the last redirect response is returned as the result. The result
// keeps the requested URL as its identity and reports where the chain ended
// in FinalURL.
package fetcher
