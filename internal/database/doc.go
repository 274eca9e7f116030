// Package database provides SQLite storage for torspider.
//
// A CrawlDB serves two roles in a single file:
//   - a document store for archived pages (the documents table)
//   - a persistent dedup cache (the set_members table), so a crawl can be
//     stopped and resumed with --resume without a Redis server
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
//  1. The database is a single file under the XDG data directory
//  2. The CGO-free driver keeps cross-compilation easy
//  3. INSERT OR IGNORE gives the atomic add-if-absent the dedup gate needs
//
// All writes go through one connection, so SQLite's single-writer model
// serializes them.
package database
