package mosaic

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// DefaultWorkers is the concurrency used when Options.MaxWorkers is zero.
const DefaultWorkers = 4

// Options tunes one assembly.
type Options struct {
	// MaxWorkers bounds concurrent asset reads. Zero means
	// DefaultWorkers; negative values are a configuration error.
	MaxWorkers int
	// MaxAssets, when positive, stops the assembly after that many
	// assets have been folded in, complete or not.
	MaxAssets int
	// Timeout is the per-asset read deadline. Zero disables it.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Mosaic is a finished tile: the merged buffer and mask, the assets that
// contributed (in asset-list order), and the per-asset failures that were
// tolerated along the way.
type Mosaic struct {
	Buffer   *Buffer
	Mask     Mask
	Assets   []string
	Failures []*AssetError
}

// Assemble merges the assets' contributions to one tile under the given
// strategy. Per-asset failures are recorded in the result and skipped;
// the call itself fails only when configuration is invalid, ctx is
// cancelled, or no asset at all contributed a valid pixel
// (NoValidAssetsError).
//
// Assets are read with bounded concurrency but folded in strictly in
// list order, so the result is reproducible regardless of fetch timing.
// Once the strategy reports completion, or MaxAssets contributions are
// in, remaining reads are cancelled and their results discarded.
func Assemble(ctx context.Context, assets []string, spec TileSpec, reader Reader, strategy Strategy, opts Options) (*Mosaic, error) {
	if !spec.valid() {
		return nil, ConfigError(fmt.Sprintf("invalid tile spec %dx%dx%d", spec.Bands, spec.Height, spec.Width))
	}
	workers := opts.MaxWorkers
	if workers == 0 {
		workers = DefaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "assembler")

	sched, err := NewScheduler(reader, workers, opts.Timeout, opts.Logger)
	if err != nil {
		return nil, err
	}

	stream := sched.Run(ctx, spec, assets)
	defer stream.Stop()

	var (
		used     []string
		failures []*AssetError
		folded   bool
	)

	for {
		res, ok := stream.Next()
		if !ok {
			break
		}
		if res.Err != nil {
			logger.Debug("asset skipped", "asset", res.Asset, "kind", res.Err.Kind.String(), "error", res.Err.Err)
			failures = append(failures, res.Err)
			continue
		}
		if !res.Buffer.Matches(spec) || len(res.Mask) != spec.Pixels() {
			ae := &AssetError{
				Asset: res.Asset,
				Kind:  KindDimension,
				Err:   fmt.Errorf("asset shape %s does not match tile %dx%dx%d", res.Buffer.shape(), spec.Bands, spec.Height, spec.Width),
			}
			logger.Debug("asset skipped", "asset", res.Asset, "kind", ae.Kind.String(), "error", ae.Err)
			failures = append(failures, ae)
			continue
		}
		if res.Mask.Valid() == 0 {
			logger.Debug("asset skipped", "asset", res.Asset, "reason", "all pixels masked")
			continue
		}

		if err := strategy.Update(res.Buffer, res.Mask); err != nil {
			return nil, fmt.Errorf("merge strategy: %w", err)
		}
		folded = true
		used = append(used, res.Asset)

		if strategy.Complete() {
			logger.Debug("assembly complete", "assets_used", len(used))
			break
		}
		if opts.MaxAssets > 0 && len(used) >= opts.MaxAssets {
			logger.Debug("asset limit reached", "assets_used", len(used))
			break
		}
	}
	stream.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !folded {
		return nil, &NoValidAssetsError{Failures: failures}
	}

	buf, mask := strategy.Finalize()
	return &Mosaic{Buffer: buf, Mask: mask, Assets: used, Failures: failures}, nil
}
