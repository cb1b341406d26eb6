package mosaic

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// Reader fetches one asset's contribution to a tile. Implementations must
// be safe for concurrent use across distinct asset ids.
type Reader interface {
	ReadTile(ctx context.Context, asset string, spec TileSpec) (*Buffer, Mask, error)
}

// ReaderFunc adapts a function to the Reader interface.
type ReaderFunc func(ctx context.Context, asset string, spec TileSpec) (*Buffer, Mask, error)

func (f ReaderFunc) ReadTile(ctx context.Context, asset string, spec TileSpec) (*Buffer, Mask, error) {
	return f(ctx, asset, spec)
}

// Result is one asset's outcome. Exactly one of Buffer or Err is set.
type Result struct {
	Asset  string
	Buffer *Buffer
	Mask   Mask
	Err    *AssetError
}

// Scheduler runs asset reads with bounded concurrency and yields their
// results strictly in submission order, whatever order the reads finish
// in. The merge step depends on that ordering for deterministic
// tie-breaking between overlapping assets.
type Scheduler struct {
	reader  Reader
	workers int
	timeout time.Duration
	logger  *slog.Logger
}

// NewScheduler returns a scheduler running at most workers reads at once.
// A timeout of zero disables the per-asset deadline.
func NewScheduler(r Reader, workers int, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if workers < 1 {
		return nil, ConfigError("max workers must be at least 1")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		reader:  r,
		workers: workers,
		timeout: timeout,
		logger:  logger.With("component", "scheduler"),
	}, nil
}

// Run starts a result stream over assets. Reads are launched lazily, at
// most workers ahead of what the consumer has pulled, so a consumer that
// stops early never triggers reads it will not use.
func (s *Scheduler) Run(ctx context.Context, spec TileSpec, assets []string) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	slots := make([]chan Result, len(assets))
	for i := range slots {
		// One buffered slot per asset doubles as the reorder buffer and
		// keeps late reads from blocking after the consumer is gone.
		slots[i] = make(chan Result, 1)
	}
	return &Stream{
		sched:  s,
		spec:   spec,
		assets: assets,
		slots:  slots,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Stream delivers asset results one at a time, in asset-list order. It is
// not safe for concurrent use; one consumer owns it.
type Stream struct {
	sched    *Scheduler
	spec     TileSpec
	assets   []string
	slots    []chan Result
	ctx      context.Context
	cancel   context.CancelFunc
	next     int
	launched int
}

// Next blocks until the next in-order result is available. It returns
// false when the asset list is exhausted or the stream was stopped; no
// result is ever delivered after Stop.
func (st *Stream) Next() (Result, bool) {
	if st.next >= len(st.assets) || st.ctx.Err() != nil {
		return Result{}, false
	}
	for st.launched < len(st.assets) && st.launched < st.next+st.sched.workers {
		st.launch(st.launched)
		st.launched++
	}
	select {
	case res := <-st.slots[st.next]:
		st.next++
		return res, true
	case <-st.ctx.Done():
		return Result{}, false
	}
}

// Stop cancels not-yet-started reads and abandons in-flight ones. It is
// safe to call more than once.
func (st *Stream) Stop() {
	st.cancel()
}

func (st *Stream) launch(i int) {
	asset := st.assets[i]
	go func() {
		st.slots[i] <- st.sched.fetch(st.ctx, asset, st.spec)
	}()
}

// fetch runs a single read under the per-asset deadline. A reader that
// ignores its context still cannot stall the assembly: fetch gives up at
// the deadline and reports a timeout, leaving the read to finish on its
// own and be discarded.
func (s *Scheduler) fetch(ctx context.Context, asset string, spec TileSpec) Result {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	done := make(chan Result, 1)
	go func() {
		buf, mask, err := s.reader.ReadTile(ctx, asset, spec)
		if err != nil {
			done <- Result{Asset: asset, Err: classify(asset, err)}
			return
		}
		done <- Result{Asset: asset, Buffer: buf, Mask: mask}
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		kind := KindGeneric
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
			s.logger.Warn("asset read timed out", "asset", asset, "timeout", s.timeout)
		}
		return Result{Asset: asset, Err: &AssetError{Asset: asset, Kind: kind, Err: ctx.Err()}}
	}
}

// classify turns a reader error into an AssetError, preserving the kind
// when the reader already reported one.
func classify(asset string, err error) *AssetError {
	var ae *AssetError
	if errors.As(err, &ae) {
		if ae.Asset == "" {
			ae.Asset = asset
		}
		return ae
	}
	kind := KindGeneric
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &AssetError{Asset: asset, Kind: kind, Err: err}
}
