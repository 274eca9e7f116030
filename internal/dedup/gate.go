package dedup

import (
	"context"

	"github.com/nao1215/torspider/internal/model"
)

// Names of the sets the Gate keeps in its Cache.
const (
	SetClaimed = "claimed"
	SetFetched = "fetched"
	SetFailed  = "failed"
	SetPending = "pending"
)

// Gate answers "is this URL new" for the whole crawl.
// It is safe for concurrent use as long as its Cache is.
type Gate struct {
	claimed Set
	fetched Set
	failed  Set
	pending Set
}

// Counts is a snapshot of the Gate's set sizes.
type Counts struct {
	Claimed int64
	Fetched int64
	Failed  int64
	Pending int64
}

// NewGate creates a Gate on top of cache.
func NewGate(cache Cache) *Gate {
	return &Gate{
		claimed: cache.Set(SetClaimed),
		fetched: cache.Set(SetFetched),
		failed:  cache.Set(SetFailed),
		pending: cache.Set(SetPending),
	}
}

// TryClaim marks u as seen and reports whether this call was the one that did it.
// Calling it twice with the same URL returns true then false.
func (g *Gate) TryClaim(ctx context.Context, u model.URL) (bool, error) {
	return g.claimed.AddIfAbsent(ctx, u.Key)
}

// Claimed reports whether u has been claimed.
func (g *Gate) Claimed(ctx context.Context, u model.URL) (bool, error) {
	return g.claimed.Contains(ctx, u.Key)
}

// Fetched reports whether a fetch attempt for u has completed.
func (g *Gate) Fetched(ctx context.Context, u model.URL) (bool, error) {
	return g.fetched.Contains(ctx, u.Key)
}

// MarkFetched records that a fetch attempt for u completed and drops it
// from the pending set.
func (g *Gate) MarkFetched(ctx context.Context, u model.URL) error {
	if _, err := g.fetched.AddIfAbsent(ctx, u.Key); err != nil {
		return err
	}
	return g.pending.Remove(ctx, u.String())
}

// MarkFailed records that the fetch attempt for u failed.
// Failed URLs stay claimed and are not retried within the session.
func (g *Gate) MarkFailed(ctx context.Context, u model.URL) error {
	_, err := g.failed.AddIfAbsent(ctx, u.Key)
	return err
}

// AddPending persists u as waiting to be fetched.
// The scheme is kept so a resumed crawl can rebuild the request.
func (g *Gate) AddPending(ctx context.Context, u model.URL) error {
	_, err := g.pending.AddIfAbsent(ctx, u.String())
	return err
}

// RemovePending drops u from the pending set.
func (g *Gate) RemovePending(ctx context.Context, u model.URL) error {
	return g.pending.Remove(ctx, u.String())
}

// PopPending removes and returns up to n pending URLs in "scheme://key" form.
func (g *Gate) PopPending(ctx context.Context, n int) ([]string, error) {
	return g.pending.Pop(ctx, n)
}

// Counts returns the current set sizes.
func (g *Gate) Counts(ctx context.Context) (Counts, error) {
	var (
		c   Counts
		err error
	)
	if c.Claimed, err = g.claimed.Len(ctx); err != nil {
		return Counts{}, err
	}
	if c.Fetched, err = g.fetched.Len(ctx); err != nil {
		return Counts{}, err
	}
	if c.Failed, err = g.failed.Len(ctx); err != nil {
		return Counts{}, err
	}
	if c.Pending, err = g.pending.Len(ctx); err != nil {
		return Counts{}, err
	}
	return c, nil
}
