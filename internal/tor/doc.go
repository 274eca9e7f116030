// Package tor provides the SOCKS5 route used for onion services.
//
// A Client dials through a Tor SOCKS port (127.0.0.1:9050 by default, no
// authentication) and hands out an http.Transport for the fetcher's proxied
// route. CheckConnection performs a SOCKS5 handshake so a crawl can fail
// fast at startup when seeds need the proxy and nothing is listening.
//
// EmbeddedTor starts a private Tor daemon through tornago for machines
// without a system Tor.
//
// Design decision: Dial errors are wrapped with ErrProxyCannotConnect or
// ErrProxyRequestFailed so the fetcher can tell proxy failures from
// ordinary connection failures without inspecting error strings.
package tor
