package mosaic

import (
	"math"
	"sort"
)

// accum carries the state every built-in strategy shares: the output
// buffer, the union mask, and the widest source type folded in so far.
type accum struct {
	spec TileSpec
	out  *Buffer
	mask Mask
	seen bool
}

func newAccum(spec TileSpec) accum {
	return accum{
		spec: spec,
		out:  NewBuffer(spec, Uint8),
		mask: NewMask(spec),
	}
}

func (a *accum) absorbDType(dt DType) {
	if !a.seen {
		a.out.DType = dt
		a.seen = true
		return
	}
	a.out.DType = PromoteDType(a.out.DType, dt)
}

// firstValid keeps, per pixel, the first asset in submission order that
// covers it. It is the only built-in able to complete early: once every
// pixel is set, later assets cannot change the result.
type firstValid struct {
	accum
	remaining int
}

func newFirstValid(spec TileSpec) *firstValid {
	return &firstValid{accum: newAccum(spec), remaining: spec.Pixels()}
}

func (s *firstValid) Update(buf *Buffer, mask Mask) error {
	s.absorbDType(buf.DType)
	for p := range mask {
		if !mask[p] || s.mask[p] {
			continue
		}
		s.mask[p] = true
		s.remaining--
		for b := 0; b < s.spec.Bands; b++ {
			s.out.Set(b, p, buf.At(b, p))
		}
	}
	return nil
}

func (s *firstValid) Complete() bool { return s.remaining == 0 }

func (s *firstValid) Finalize() (*Buffer, Mask) { return s.out, s.mask }

// lastValid keeps the most recent covering asset per pixel, so it must
// see the whole asset list.
type lastValid struct {
	accum
}

func newLastValid(spec TileSpec) *lastValid {
	return &lastValid{accum: newAccum(spec)}
}

func (s *lastValid) Update(buf *Buffer, mask Mask) error {
	s.absorbDType(buf.DType)
	for p := range mask {
		if !mask[p] {
			continue
		}
		s.mask[p] = true
		for b := 0; b < s.spec.Bands; b++ {
			s.out.Set(b, p, buf.At(b, p))
		}
	}
	return nil
}

func (s *lastValid) Complete() bool { return false }

func (s *lastValid) Finalize() (*Buffer, Mask) { return s.out, s.mask }

// extremal keeps the numerically highest (or lowest) valid sample per
// band. It never completes early: a later asset can always hold a more
// extreme value.
type extremal struct {
	accum
	higher bool
}

func newExtremal(spec TileSpec, higher bool) *extremal {
	return &extremal{accum: newAccum(spec), higher: higher}
}

func (s *extremal) Update(buf *Buffer, mask Mask) error {
	s.absorbDType(buf.DType)
	for p := range mask {
		if !mask[p] {
			continue
		}
		if !s.mask[p] {
			s.mask[p] = true
			for b := 0; b < s.spec.Bands; b++ {
				s.out.Set(b, p, buf.At(b, p))
			}
			continue
		}
		for b := 0; b < s.spec.Bands; b++ {
			v := buf.At(b, p)
			cur := s.out.At(b, p)
			if (s.higher && v > cur) || (!s.higher && v < cur) {
				s.out.Set(b, p, v)
			}
		}
	}
	return nil
}

func (s *extremal) Complete() bool { return false }

func (s *extremal) Finalize() (*Buffer, Mask) { return s.out, s.mask }

// mean accumulates a running sum and contribution count per pixel.
type mean struct {
	accum
	sum   []float64
	count []int
}

func newMean(spec TileSpec) *mean {
	return &mean{
		accum: newAccum(spec),
		sum:   make([]float64, spec.Bands*spec.Pixels()),
		count: make([]int, spec.Pixels()),
	}
}

func (s *mean) Update(buf *Buffer, mask Mask) error {
	s.absorbDType(buf.DType)
	px := s.spec.Pixels()
	for p := range mask {
		if !mask[p] {
			continue
		}
		s.mask[p] = true
		s.count[p]++
		for b := 0; b < s.spec.Bands; b++ {
			s.sum[b*px+p] += buf.At(b, p)
		}
	}
	return nil
}

func (s *mean) Complete() bool { return false }

func (s *mean) Finalize() (*Buffer, Mask) {
	px := s.spec.Pixels()
	for p, n := range s.count {
		if n == 0 {
			continue
		}
		for b := 0; b < s.spec.Bands; b++ {
			s.out.Set(b, p, s.sum[b*px+p]/float64(n))
		}
	}
	s.out.DType = Float64
	return s.out, s.mask
}

// median retains every valid contribution per sample, bounded by the
// number of assets actually consulted.
type median struct {
	accum
	values [][]float64
}

func newMedian(spec TileSpec) *median {
	return &median{
		accum:  newAccum(spec),
		values: make([][]float64, spec.Bands*spec.Pixels()),
	}
}

func (s *median) Update(buf *Buffer, mask Mask) error {
	s.absorbDType(buf.DType)
	px := s.spec.Pixels()
	for p := range mask {
		if !mask[p] {
			continue
		}
		s.mask[p] = true
		for b := 0; b < s.spec.Bands; b++ {
			i := b*px + p
			s.values[i] = append(s.values[i], buf.At(b, p))
		}
	}
	return nil
}

func (s *median) Complete() bool { return false }

func (s *median) Finalize() (*Buffer, Mask) {
	for i, vals := range s.values {
		if len(vals) == 0 {
			continue
		}
		sort.Float64s(vals)
		mid := len(vals) / 2
		var m float64
		if len(vals)%2 == 1 {
			m = vals[mid]
		} else {
			m = (vals[mid-1] + vals[mid]) / 2
		}
		s.out.Samples[i] = m
	}
	s.out.DType = Float64
	return s.out, s.mask
}

// stddev computes the per-sample population standard deviation with
// Welford's running accumulation, keeping constant state per sample
// instead of full value lists.
type stddev struct {
	accum
	count []int
	mean  []float64
	m2    []float64
}

func newStddev(spec TileSpec) *stddev {
	n := spec.Bands * spec.Pixels()
	return &stddev{
		accum: newAccum(spec),
		count: make([]int, spec.Pixels()),
		mean:  make([]float64, n),
		m2:    make([]float64, n),
	}
}

func (s *stddev) Update(buf *Buffer, mask Mask) error {
	s.absorbDType(buf.DType)
	px := s.spec.Pixels()
	for p := range mask {
		if !mask[p] {
			continue
		}
		s.mask[p] = true
		s.count[p]++
		n := float64(s.count[p])
		for b := 0; b < s.spec.Bands; b++ {
			i := b*px + p
			v := buf.At(b, p)
			delta := v - s.mean[i]
			s.mean[i] += delta / n
			s.m2[i] += delta * (v - s.mean[i])
		}
	}
	return nil
}

func (s *stddev) Complete() bool { return false }

func (s *stddev) Finalize() (*Buffer, Mask) {
	px := s.spec.Pixels()
	for p, n := range s.count {
		if n == 0 {
			continue
		}
		for b := 0; b < s.spec.Bands; b++ {
			i := b*px + p
			s.out.Samples[i] = math.Sqrt(s.m2[i] / float64(n))
		}
	}
	s.out.DType = Float64
	return s.out, s.mask
}
