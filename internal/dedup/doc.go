// Package dedup guarantees that a URL is enqueued at most once per crawl.
//
// The Gate keeps four logical sets on top of a shared Cache:
//
//   - claimed: URLs that a worker has enqueued or dispatched
//   - fetched: URLs whose fetch attempt completed, successfully or not
//   - failed: URLs whose fetch attempt ended in a FetchFailure
//   - pending: claimed URLs not fetched yet, persisted for --resume
//
// Design decision: TryClaim is a single add-if-absent call on the claimed
// set. A separate "contains" followed by "add" lets two workers both observe
// "not seen" and fetch the same page, so every backend must implement
// AddIfAbsent as one atomic primitive (a locked map, Redis SADD, SQLite
// INSERT OR IGNORE).
//
// Backends: MemoryCache for single-process runs and tests, RedisCache for
// crawls shared by several processes, and database.CrawlDB for a persistent
// local cache.
package dedup
