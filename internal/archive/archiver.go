package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/nao1215/torspider/internal/model"
)

// DefaultBatchSize is the number of records written per InsertBatch call.
const DefaultBatchSize = 10

// DefaultRetainedBatches is how many batches are kept buffered while the
// store is failing. Older records are dropped past that.
const DefaultRetainedBatches = 4

// ErrStoreWrite is returned when a batch could not be written at all.
var ErrStoreWrite = errors.New("store write failed")

// Store is a document store that accepts batches of records.
type Store interface {
	// InsertBatch writes records and returns how many were inserted along
	// with one RecordError per refused record. A non-nil error means the
	// call failed as a whole and nothing can be assumed committed.
	InsertBatch(ctx context.Context, records []model.Record) (int, []model.RecordError, error)
}

// Observer is notified after every successful InsertBatch call.
type Observer interface {
	ObserveFlush(inserted, rejected int)
}

// Archiver buffers records and flushes them in batches. It is safe for
// concurrent use.
type Archiver struct {
	mu        sync.Mutex
	buf       []model.Record
	store     Store
	batchSize int
	maxBuffer int
	logger    *slog.Logger
	observer  Observer

	inserted int
	rejected int
	dropped  int
}

// Option configures an Archiver.
type Option func(*Archiver)

// WithBatchSize sets the flush threshold. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(a *Archiver) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithMaxBuffered caps the records kept buffered while the store is
// failing. Values below the batch size are raised to it.
func WithMaxBuffered(n int) Option {
	return func(a *Archiver) {
		a.maxBuffer = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archiver) {
		a.logger = logger
	}
}

// WithObserver sets an observer for flush outcomes.
func WithObserver(o Observer) Option {
	return func(a *Archiver) {
		a.observer = o
	}
}

// New creates an Archiver writing to store.
func New(store Store, opts ...Option) *Archiver {
	a := &Archiver{
		store:     store,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.maxBuffer == 0 {
		a.maxBuffer = a.batchSize * DefaultRetainedBatches
	}
	a.maxBuffer = max(a.maxBuffer, a.batchSize)
	a.buf = make([]model.Record, 0, a.batchSize)
	return a
}

// Add buffers rec and flushes when the batch is full.
// The returned error is the flush error, if a flush happened and failed.
// Unwritten records stay buffered up to the WithMaxBuffered cap; past it
// the oldest are dropped.
func (a *Archiver) Add(ctx context.Context, rec model.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buf = append(a.buf, rec)
	if len(a.buf) < a.batchSize {
		return nil
	}
	return a.flushLocked(ctx)
}

// Flush writes the buffered records now, whatever their number.
func (a *Archiver) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked(ctx)
}

// Close flushes the remaining partial batch.
func (a *Archiver) Close(ctx context.Context) error {
	return a.Flush(ctx)
}

// Pending returns the number of buffered records.
func (a *Archiver) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}

// Buffered returns a copy of the buffered records.
func (a *Archiver) Buffered() []model.Record {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]model.Record, len(a.buf))
	copy(out, a.buf)
	return out
}

// Dropped returns how many records were discarded because the buffer
// overflowed while the store was failing.
func (a *Archiver) Dropped() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Totals returns how many records were inserted and rejected so far.
func (a *Archiver) Totals() (inserted, rejected int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inserted, a.rejected
}

// flushLocked writes the buffer in chunks of at most batchSize. A failed
// chunk and everything after it stay buffered. a.mu must be held.
func (a *Archiver) flushLocked(ctx context.Context) error {
	for len(a.buf) > 0 {
		n := min(len(a.buf), a.batchSize)
		if err := a.writeChunk(ctx, a.buf[:n]); err != nil {
			a.trimLocked()
			return err
		}
		a.buf = a.buf[n:]
	}
	a.buf = make([]model.Record, 0, a.batchSize)
	return nil
}

func (a *Archiver) writeChunk(ctx context.Context, batch []model.Record) error {
	inserted, recErrs, err := a.store.InsertBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("%w: batch of %d records: %w", ErrStoreWrite, len(batch), err)
	}

	for _, re := range recErrs {
		a.logger.Warn("record rejected by store", "id", re.ID, "error", re.Err)
	}
	a.logger.Debug("archived batch", "records", len(batch), "inserted", inserted, "rejected", len(recErrs))

	a.inserted += inserted
	a.rejected += len(recErrs)
	if a.observer != nil {
		a.observer.ObserveFlush(inserted, len(recErrs))
	}
	return nil
}

// trimLocked drops the oldest records beyond maxBuffer. a.mu must be held.
func (a *Archiver) trimLocked() {
	over := len(a.buf) - a.maxBuffer
	if over <= 0 {
		return
	}
	a.logger.Warn("archive buffer full, dropping oldest records",
		"dropped", over, "kept", a.maxBuffer, "first_dropped", a.buf[0].ID)
	a.buf = slices.Clone(a.buf[over:])
	a.dropped += over
}
