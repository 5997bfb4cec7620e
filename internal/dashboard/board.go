package dashboard

import (
	"context"
	"errors"
	"sync"
)

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseError   Phase = "error"
)

// LoadFailedMessage is what the error state shows next to the retry action.
const LoadFailedMessage = "Failed to load dashboard data"

// View is what the dashboard renders. Snapshot is set only when Phase is
// ready; Err only when Phase is error.
type View struct {
	Phase     Phase     `json:"phase"`
	Epoch     uint64    `json:"epoch"`
	DateRange string    `json:"date_range"`
	Snapshot  *Snapshot `json:"snapshot,omitempty"`
	Message   string    `json:"message,omitempty"`
	Err       error     `json:"-"`
}

var ErrBoardClosed = errors.New("dashboard board closed")

// Board owns the dashboard view state. Every refresh starts a new epoch and
// cancels the batch of the previous one; a batch finishing after it was
// superseded is dropped without touching the view.
type Board struct {
	agg       *Aggregator
	companyID string
	onStale   func(epoch uint64)

	mu      sync.Mutex
	epoch   uint64
	view    View
	cancel  context.CancelFunc
	changed chan struct{}
	closed  bool
	wg      sync.WaitGroup
}

type BoardOption func(*Board)

// WithStaleHook registers fn to be called with the epoch of every
// discarded batch result.
func WithStaleHook(fn func(epoch uint64)) BoardOption {
	return func(b *Board) { b.onStale = fn }
}

func NewBoard(agg *Aggregator, companyID, dateRange string, opts ...BoardOption) *Board {
	b := &Board{
		agg:       agg,
		companyID: companyID,
		view:      View{Phase: PhaseIdle, DateRange: dateRange},
		changed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// View returns the current view.
func (b *Board) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view
}

// Refresh re-issues the full batch for the current date range and returns
// its epoch.
func (b *Board) Refresh(ctx context.Context) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.start(ctx, b.view.DateRange)
}

// SetRange switches the date range and refreshes.
func (b *Board) SetRange(ctx context.Context, dateRange string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.start(ctx, dateRange)
}

// Retry is the action behind the error state's retry button.
func (b *Board) Retry(ctx context.Context) uint64 { return b.Refresh(ctx) }

func (b *Board) start(ctx context.Context, dateRange string) uint64 {
	if b.closed {
		return b.epoch
	}
	if b.cancel != nil {
		b.cancel()
	}
	b.epoch++
	epoch := b.epoch
	bctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.set(View{Phase: PhaseLoading, Epoch: epoch, DateRange: dateRange})

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer cancel()
		snap, err := b.agg.Load(bctx, b.companyID, dateRange)
		b.finish(epoch, dateRange, snap, err)
	}()
	return epoch
}

func (b *Board) finish(epoch uint64, dateRange string, snap Snapshot, err error) {
	b.mu.Lock()
	if b.closed || epoch != b.epoch {
		stale := !b.closed
		b.mu.Unlock()
		if stale && b.onStale != nil {
			b.onStale(epoch)
		}
		return
	}
	b.cancel = nil
	if err != nil {
		b.set(View{Phase: PhaseError, Epoch: epoch, DateRange: dateRange, Message: LoadFailedMessage, Err: err})
	} else {
		b.set(View{Phase: PhaseReady, Epoch: epoch, DateRange: dateRange, Snapshot: &snap})
	}
	b.mu.Unlock()
}

// set replaces the view and wakes waiters. Callers hold b.mu.
func (b *Board) set(v View) {
	b.view = v
	close(b.changed)
	b.changed = make(chan struct{})
}

// Wait blocks until epoch settles into ready or error and returns that
// view. If epoch gets superseded it returns the view of the newer epoch
// once that one settles.
func (b *Board) Wait(ctx context.Context, epoch uint64) (View, error) {
	for {
		b.mu.Lock()
		v, ch, closed := b.view, b.changed, b.closed
		b.mu.Unlock()
		if v.Epoch >= epoch && (v.Phase == PhaseReady || v.Phase == PhaseError) {
			return v, nil
		}
		if closed {
			return v, ErrBoardClosed
		}
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-ch:
		}
	}
}

// Close cancels the in-flight batch and waits for it to return.
func (b *Board) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	if b.cancel != nil {
		b.cancel()
	}
	close(b.changed)
	b.changed = make(chan struct{})
	b.mu.Unlock()
	b.wg.Wait()
}
