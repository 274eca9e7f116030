package frontier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nao1215/torspider/internal/model"
)

// DefaultIdleWait is how long an idle frontier is re-checked before Next gives up.
const DefaultIdleWait = 2 * time.Second

// ErrDrained is returned by Next when no work is left.
var ErrDrained = errors.New("frontier drained")

// Frontier is a pair of FIFO queues safe for concurrent use.
type Frontier struct {
	mu       sync.Mutex
	internal []model.Entry
	external []model.Entry
	inflight int

	// changed is closed and replaced whenever an entry is pushed or a
	// dispatched entry is done.
	changed chan struct{}

	idleWait time.Duration
}

// Option configures a Frontier.
type Option func(*Frontier)

// WithIdleWait sets how long Next waits on an idle frontier before
// reporting ErrDrained.
func WithIdleWait(d time.Duration) Option {
	return func(f *Frontier) {
		f.idleWait = d
	}
}

// New creates an empty Frontier.
func New(opts ...Option) *Frontier {
	f := &Frontier{
		changed:  make(chan struct{}),
		idleWait: DefaultIdleWait,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Push appends e to the queue matching its kind. It never blocks.
func (f *Frontier) Push(e model.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if e.Kind == model.KindExternal {
		f.external = append(f.external, e)
	} else {
		f.internal = append(f.internal, e)
	}
	f.notify()
}

// Pop removes the next entry without blocking, external queue first.
// It reports false when both queues are empty. Entries taken with Pop are
// not counted as in flight.
func (f *Frontier) Pop() (model.Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pop()
}

// pop takes the head of the preferred queue. f.mu must be held.
func (f *Frontier) pop() (model.Entry, bool) {
	var e model.Entry
	switch {
	case len(f.external) > 0:
		e, f.external = f.external[0], f.external[1:]
	case len(f.internal) > 0:
		e, f.internal = f.internal[0], f.internal[1:]
	default:
		return model.Entry{}, false
	}
	return e, true
}

// notify wakes every goroutine blocked in Next. f.mu must be held.
func (f *Frontier) notify() {
	close(f.changed)
	f.changed = make(chan struct{})
}

// Next returns the next entry and counts it as in flight until Done is called.
//
// While the queues are empty and some entry is in flight, Next blocks.
// Once nothing is in flight it waits the idle wait once more and returns
// ErrDrained if the frontier is still idle. It returns ctx.Err() when ctx
// is canceled.
func (f *Frontier) Next(ctx context.Context) (model.Entry, error) {
	for {
		f.mu.Lock()
		if e, ok := f.pop(); ok {
			f.inflight++
			f.mu.Unlock()
			return e, nil
		}
		idle := f.inflight == 0
		changed := f.changed
		f.mu.Unlock()

		if !idle {
			select {
			case <-ctx.Done():
				return model.Entry{}, ctx.Err()
			case <-changed:
			}
			continue
		}

		timer := time.NewTimer(f.idleWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return model.Entry{}, ctx.Err()
		case <-changed:
			timer.Stop()
		case <-timer.C:
			if f.idle() {
				return model.Entry{}, ErrDrained
			}
		}
	}
}

func (f *Frontier) idle() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inflight == 0 && len(f.internal) == 0 && len(f.external) == 0
}

// Done marks an entry returned by Next as finished.
// Entries pushed while processing it must be pushed before Done is called.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inflight > 0 {
		f.inflight--
	}
	f.notify()
}

// Len returns the number of entries queued for kind.
func (f *Frontier) Len(kind model.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if kind == model.KindExternal {
		return len(f.external)
	}
	return len(f.internal)
}

// InFlight returns the number of entries handed out by Next and not yet done.
func (f *Frontier) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inflight
}

// Snapshot returns a copy of the queue for kind in dequeue order.
func (f *Frontier) Snapshot(kind model.Kind) []model.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	q := f.internal
	if kind == model.KindExternal {
		q = f.external
	}
	out := make([]model.Entry, len(q))
	copy(out, q)
	return out
}
