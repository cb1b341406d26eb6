package mosaic

import (
	"sort"
	"sync"
)

// Strategy folds successive asset contributions into one tile. An
// instance accumulates the state of a single assembly and must not be
// reused across requests; Factory creates a fresh one per request.
//
// Update folds one asset's buffer and mask in. Complete reports whether
// further assets could still change the result; once it returns true the
// assembler stops fetching. Finalize produces the merged buffer and mask.
// Pixels that no consulted asset covered stay invalid in the final mask: a
// strategy may add confidence to a pixel, never invent or revoke it.
type Strategy interface {
	Update(buf *Buffer, mask Mask) error
	Complete() bool
	Finalize() (*Buffer, Mask)
}

// Factory builds a strategy instance sized for one tile request.
type Factory func(spec TileSpec) Strategy

var (
	strategyMu sync.RWMutex
	strategies = map[string]Factory{}
)

// Register makes a strategy available by name, replacing any previous
// registration. Built-in names: first, last, highest, lowest, mean,
// median, stddev.
func Register(name string, f Factory) {
	strategyMu.Lock()
	defer strategyMu.Unlock()
	strategies[name] = f
}

// NewStrategy instantiates a registered strategy for one tile request.
func NewStrategy(name string, spec TileSpec) (Strategy, error) {
	strategyMu.RLock()
	f, ok := strategies[name]
	strategyMu.RUnlock()
	if !ok {
		return nil, ConfigError("unknown merge strategy " + name)
	}
	return f(spec), nil
}

// StrategyNames returns the registered strategy names, sorted.
func StrategyNames() []string {
	strategyMu.RLock()
	defer strategyMu.RUnlock()
	names := make([]string, 0, len(strategies))
	for name := range strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("first", func(spec TileSpec) Strategy { return newFirstValid(spec) })
	Register("last", func(spec TileSpec) Strategy { return newLastValid(spec) })
	Register("highest", func(spec TileSpec) Strategy { return newExtremal(spec, true) })
	Register("lowest", func(spec TileSpec) Strategy { return newExtremal(spec, false) })
	Register("mean", func(spec TileSpec) Strategy { return newMean(spec) })
	Register("median", func(spec TileSpec) Strategy { return newMedian(spec) })
	Register("stddev", func(spec TileSpec) Strategy { return newStddev(spec) })
}
