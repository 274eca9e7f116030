// Package link turns raw href values into canonical crawl targets.
//
// # Classification
//
// Classify resolves a raw link against the page it was found on and decides
// whether it stays on the page's site (internal) or leaves it (external).
// Two authorities belong to the same site when they are equal, or when they
// share a registrable domain ("blog.example.com" and "example.com") and port.
//
// Design decision: The registrable domain comes from the public suffix list
// (golang.org/x/net/publicsuffix) rather than "last two labels" because:
//  1. "example.co.uk" and "other.co.uk" must not be treated as one site
//  2. Unlisted suffixes such as ".onion" and ".test" fall back to the
//     default rule, which gives the expected "name.onion" result
//
// # Canonical form
//
// The canonical key drops the scheme, the fragment, default ports, runs of
// "/" and any trailing "/". The query string is kept. The key is the identity
// used for deduplication and as the archived document id.
//
// # Extraction
//
// Extract walks the anchors of a parsed document in order and yields each
// distinct target once. The returned sequence is lazy and single-pass.
package link
