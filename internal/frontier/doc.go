// Package frontier holds the URLs waiting to be fetched.
//
// A Frontier keeps two FIFO queues, one for internal links and one for
// external links. Dequeuing always serves the external queue first, so the
// crawl keeps discovering new sites instead of exhausting one site's pages.
//
// Workers use Next, which blocks while the frontier is empty but other
// workers are still fetching, because those fetches may enqueue new links.
// Next returns ErrDrained only when both queues are empty, nothing is in
// flight, and that is still true after the idle wait.
package frontier
