// Package crawler runs the crawl: a pool of workers that take entries from
// the frontier, fetch them, archive the result and feed newly claimed links
// back into the frontier.
//
// # Architecture
//
// The Coordinator owns no queue or set of its own. The frontier, the dedup
// gate, the fetcher and the archiver are built by the caller and injected,
// so several independent crawls can run in one process and tests can swap
// any of them.
//
// Each worker loops:
//
//	next entry -> fetch -> archive -> extract links -> claim -> enqueue
//
// A failed fetch is logged and the worker moves on. A dedup cache failure
// stops every worker, because the crawl could no longer guarantee that a
// URL is fetched only once.
//
// Design decision: URLs are claimed when they are enqueued rather than when
// their fetch completes because:
//  1. Two workers can never queue the same URL
//  2. The frontier never holds duplicates
//  3. The price is that a failed URL is not retried in the same session
//
// # Site statistics
//
// Pages are not retained after their links are extracted. Per-site totals
// are kept in a flat map keyed by domain and exposed through Stats.
//
// # Usage
//
//	c := crawler.New(front, fetch, gate, arch, crawler.WithWorkers(20))
//	if _, err := c.Seed(ctx, seeds); err != nil {
//		return err
//	}
//	err := c.Run(ctx)
package crawler
