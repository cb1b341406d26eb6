package mosaic

import (
	"errors"
	"math"
	"testing"
)

var spec2x2 = TileSpec{Bands: 1, Width: 2, Height: 2}

// bufOf builds a single-band buffer from row-major values.
func bufOf(t *testing.T, spec TileSpec, dt DType, vals ...float64) *Buffer {
	t.Helper()
	if len(vals) != spec.Pixels() {
		t.Fatalf("bufOf: %d values for %d pixels", len(vals), spec.Pixels())
	}
	buf := NewBuffer(spec, dt)
	copy(buf.Samples, vals)
	return buf
}

func maskOf(vals ...bool) Mask { return Mask(vals) }

func mustStrategy(t *testing.T, name string, spec TileSpec) Strategy {
	t.Helper()
	s, err := NewStrategy(name, spec)
	if err != nil {
		t.Fatalf("NewStrategy(%s): %v", name, err)
	}
	return s
}

func TestFirstValidKeepsEarliestContribution(t *testing.T) {
	s := mustStrategy(t, "first", spec2x2)

	// Asset 1 covers pixels 0 and 1; asset 2 covers everything.
	s.Update(bufOf(t, spec2x2, Uint8, 10, 11, 0, 0), maskOf(true, true, false, false))
	if s.Complete() {
		t.Fatal("complete after partial coverage")
	}
	s.Update(bufOf(t, spec2x2, Uint8, 20, 21, 22, 23), maskOf(true, true, true, true))
	if !s.Complete() {
		t.Fatal("not complete after full coverage")
	}

	buf, mask := s.Finalize()
	want := []float64{10, 11, 22, 23}
	for p, w := range want {
		if buf.At(0, p) != w {
			t.Errorf("pixel %d = %v, want %v", p, buf.At(0, p), w)
		}
		if !mask[p] {
			t.Errorf("pixel %d masked out", p)
		}
	}
}

func TestLastValidKeepsLatestContribution(t *testing.T) {
	s := mustStrategy(t, "last", spec2x2)
	s.Update(bufOf(t, spec2x2, Uint8, 10, 11, 12, 0), maskOf(true, true, true, false))
	s.Update(bufOf(t, spec2x2, Uint8, 20, 0, 0, 23), maskOf(true, false, false, true))
	if s.Complete() {
		t.Fatal("last strategy must scan all assets")
	}

	buf, mask := s.Finalize()
	want := []float64{20, 11, 12, 23}
	for p, w := range want {
		if buf.At(0, p) != w {
			t.Errorf("pixel %d = %v, want %v", p, buf.At(0, p), w)
		}
	}
	if mask.Valid() != 4 {
		t.Errorf("valid pixels = %d, want 4", mask.Valid())
	}
}

func TestHighestAndLowestPickExtremes(t *testing.T) {
	full := maskOf(true, true, true, true)

	hi := mustStrategy(t, "highest", spec2x2)
	hi.Update(bufOf(t, spec2x2, Uint8, 5, 50, 5, 50), full)
	hi.Update(bufOf(t, spec2x2, Uint8, 9, 9, 9, 9), full)
	buf, _ := hi.Finalize()
	for p, w := range []float64{9, 50, 9, 50} {
		if buf.At(0, p) != w {
			t.Errorf("highest pixel %d = %v, want %v", p, buf.At(0, p), w)
		}
	}

	lo := mustStrategy(t, "lowest", spec2x2)
	lo.Update(bufOf(t, spec2x2, Uint8, 5, 50, 5, 50), full)
	lo.Update(bufOf(t, spec2x2, Uint8, 9, 9, 9, 9), full)
	buf, _ = lo.Finalize()
	for p, w := range []float64{5, 9, 5, 9} {
		if buf.At(0, p) != w {
			t.Errorf("lowest pixel %d = %v, want %v", p, buf.At(0, p), w)
		}
	}
}

func TestExtremalIgnoresMaskedPixels(t *testing.T) {
	hi := mustStrategy(t, "highest", spec2x2)
	// The 200s are masked; they must never win.
	hi.Update(bufOf(t, spec2x2, Uint8, 3, 3, 3, 3), maskOf(true, true, true, true))
	hi.Update(bufOf(t, spec2x2, Uint8, 200, 200, 200, 200), maskOf(false, false, false, false))
	buf, _ := hi.Finalize()
	for p := 0; p < 4; p++ {
		if buf.At(0, p) != 3 {
			t.Errorf("pixel %d = %v, want 3", p, buf.At(0, p))
		}
	}
}

func TestMeanAveragesValidContributions(t *testing.T) {
	s := mustStrategy(t, "mean", spec2x2)
	s.Update(bufOf(t, spec2x2, Uint8, 2, 2, 8, 0), maskOf(true, true, true, false))
	s.Update(bufOf(t, spec2x2, Uint8, 4, 0, 0, 0), maskOf(true, false, false, false))

	buf, mask := s.Finalize()
	if got := buf.At(0, 0); got != 3 {
		t.Errorf("pixel 0 mean = %v, want 3", got)
	}
	if got := buf.At(0, 1); got != 2 {
		t.Errorf("pixel 1 mean = %v, want 2 (single contribution)", got)
	}
	if mask[3] {
		t.Error("pixel 3 had no valid contribution but is marked valid")
	}
	if buf.DType != Float64 {
		t.Errorf("mean output dtype = %s, want float64", buf.DType)
	}
}

func TestMedianOddAndEvenCounts(t *testing.T) {
	s := mustStrategy(t, "median", spec2x2)
	m := maskOf(true, true, false, false)
	s.Update(bufOf(t, spec2x2, Uint8, 9, 1, 0, 0), m)
	s.Update(bufOf(t, spec2x2, Uint8, 1, 3, 0, 0), m)
	s.Update(bufOf(t, spec2x2, Uint8, 5, 0, 0, 0), maskOf(true, false, false, false))

	buf, _ := s.Finalize()
	if got := buf.At(0, 0); got != 5 {
		t.Errorf("odd-count median = %v, want 5", got)
	}
	if got := buf.At(0, 1); got != 2 {
		t.Errorf("even-count median = %v, want 2", got)
	}
}

func TestStddevPopulation(t *testing.T) {
	s := mustStrategy(t, "stddev", spec2x2)
	m := maskOf(true, true, false, false)
	s.Update(bufOf(t, spec2x2, Uint8, 2, 6, 0, 0), m)
	s.Update(bufOf(t, spec2x2, Uint8, 4, 6, 0, 0), m)

	buf, _ := s.Finalize()
	if got := buf.At(0, 0); math.Abs(got-1) > 1e-12 {
		t.Errorf("stddev of {2,4} = %v, want 1", got)
	}
	if got := buf.At(0, 1); got != 0 {
		t.Errorf("stddev of {6,6} = %v, want 0", got)
	}
}

func TestStrategiesNeverInventValidity(t *testing.T) {
	builtins := []string{"first", "last", "highest", "lowest", "mean", "median", "stddev"}
	for _, name := range builtins {
		s := mustStrategy(t, name, spec2x2)
		// Pixel 3 is invalid in every asset.
		s.Update(bufOf(t, spec2x2, Uint8, 1, 1, 1, 99), maskOf(true, true, true, false))
		s.Update(bufOf(t, spec2x2, Uint8, 2, 2, 2, 99), maskOf(true, true, true, false))
		_, mask := s.Finalize()
		if mask[3] {
			t.Errorf("%s: pixel with no valid contribution is marked valid", name)
		}
		if mask.Valid() != 3 {
			t.Errorf("%s: valid pixels = %d, want 3", name, mask.Valid())
		}
	}
}

func TestUpdatePromotesDType(t *testing.T) {
	s := mustStrategy(t, "first", spec2x2)
	s.Update(bufOf(t, spec2x2, Uint8, 1, 0, 0, 0), maskOf(true, false, false, false))
	s.Update(bufOf(t, spec2x2, Int16, 0, 2, 2, 2), maskOf(false, true, true, true))
	buf, _ := s.Finalize()
	if buf.DType != Int16 {
		t.Errorf("dtype = %s, want int16", buf.DType)
	}
}

func TestPromoteDType(t *testing.T) {
	cases := []struct {
		a, b, want DType
	}{
		{Uint8, Uint8, Uint8},
		{Uint8, Uint16, Uint16},
		{Uint8, Int16, Int16},
		{Uint16, Int16, Int32},
		{Int16, Int32, Int32},
		{Uint16, Float32, Float32},
		{Int32, Float32, Float64},
		{Float32, Float64, Float64},
		{Float64, Uint8, Float64},
	}
	for _, c := range cases {
		if got := PromoteDType(c.a, c.b); got != c.want {
			t.Errorf("PromoteDType(%s, %s) = %s, want %s", c.a, c.b, got, c.want)
		}
		if got := PromoteDType(c.b, c.a); got != c.want {
			t.Errorf("PromoteDType(%s, %s) = %s, want %s", c.b, c.a, got, c.want)
		}
	}
}

func TestNewStrategyUnknownName(t *testing.T) {
	_, err := NewStrategy("darkest", spec2x2)
	var cfg ConfigError
	if !errors.As(err, &cfg) {
		t.Fatalf("want ConfigError, got %v", err)
	}
}

// pickyStrategy rejects every update; used to exercise custom
// registration and strategy error propagation.
type pickyStrategy struct{ spec TileSpec }

func (p *pickyStrategy) Update(buf *Buffer, mask Mask) error {
	return errors.New("nothing is good enough")
}
func (p *pickyStrategy) Complete() bool { return false }
func (p *pickyStrategy) Finalize() (*Buffer, Mask) {
	return NewBuffer(p.spec, Uint8), NewMask(p.spec)
}

func TestRegisterCustomStrategy(t *testing.T) {
	Register("picky", func(spec TileSpec) Strategy { return &pickyStrategy{spec: spec} })
	s, err := NewStrategy("picky", spec2x2)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*pickyStrategy); !ok {
		t.Fatalf("got %T, want *pickyStrategy", s)
	}

	found := false
	for _, name := range StrategyNames() {
		if name == "picky" {
			found = true
		}
	}
	if !found {
		t.Error("picky missing from StrategyNames")
	}
}
