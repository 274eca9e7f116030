// Package archive batches fetched pages and writes them to a document store.
//
// Records are appended to one guarded buffer shared by all workers. When the
// buffer reaches the batch size it is written synchronously with a single
// InsertBatch call and cleared. Records the store rejects individually are
// logged and dropped; the rest of the batch stays committed. If the whole
// call fails the batch stays buffered and the next flush tries again.
//
// Close flushes whatever is left, so a partial batch is not lost at shutdown.
package archive
