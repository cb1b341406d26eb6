// Package mosaic assembles a single map tile from the overlapping tiles of
// many raster assets. Assets are fetched concurrently with bounded
// parallelism, their results are folded together pixel by pixel under a
// selectable merge strategy, and individual asset failures are tolerated as
// long as at least one asset contributes usable pixels.
package mosaic

import "fmt"

// DType identifies the native numeric type of a raster source. Sample
// values are carried as float64 (the widest type in the set) while the tag
// records the narrowest type able to represent every source folded in.
type DType int

const (
	Uint8 DType = iota
	Uint16
	Int16
	Int32
	Float32
	Float64
)

func (d DType) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	}
	return "unknown"
}

// PromoteDType returns the narrowest type able to hold values of both a
// and b without truncation.
func PromoteDType(a, b DType) DType {
	if a == b {
		return a
	}
	if a > b {
		a, b = b, a
	}
	switch {
	case b == Float64:
		return Float64
	case b == Float32:
		// float32 holds all 16-bit integers exactly, but not int32.
		if a == Int32 {
			return Float64
		}
		return Float32
	case b == Int32:
		return Int32
	case b == Int16:
		// int16 and uint16 need a wider signed type.
		if a == Uint16 {
			return Int32
		}
		return Int16
	default:
		return Uint16
	}
}

// TileSpec fixes the dimensions of the tile being assembled. The spec is
// known from the tile grid before any asset is read, so a foreign-sized
// asset result can be rejected instead of reshaping the output.
type TileSpec struct {
	Bands  int
	Width  int
	Height int
}

func (s TileSpec) valid() bool {
	return s.Bands >= 1 && s.Width >= 1 && s.Height >= 1
}

// Pixels returns the number of spatial pixels in the tile.
func (s TileSpec) Pixels() int {
	return s.Width * s.Height
}

// Buffer holds bands × height × width samples in band-major order.
type Buffer struct {
	Bands   int
	Width   int
	Height  int
	DType   DType
	Samples []float64
}

// NewBuffer allocates a zeroed buffer matching spec.
func NewBuffer(spec TileSpec, dt DType) *Buffer {
	return &Buffer{
		Bands:   spec.Bands,
		Width:   spec.Width,
		Height:  spec.Height,
		DType:   dt,
		Samples: make([]float64, spec.Bands*spec.Width*spec.Height),
	}
}

// At returns the sample for band b at spatial pixel p (row*width+col).
func (buf *Buffer) At(b, p int) float64 {
	return buf.Samples[b*buf.Width*buf.Height+p]
}

// Set writes the sample for band b at spatial pixel p.
func (buf *Buffer) Set(b, p int, v float64) {
	buf.Samples[b*buf.Width*buf.Height+p] = v
}

// Matches reports whether the buffer's shape equals spec.
func (buf *Buffer) Matches(spec TileSpec) bool {
	return buf.Bands == spec.Bands && buf.Width == spec.Width &&
		buf.Height == spec.Height &&
		len(buf.Samples) == spec.Bands*spec.Width*spec.Height
}

func (buf *Buffer) shape() string {
	return fmt.Sprintf("%dx%dx%d", buf.Bands, buf.Height, buf.Width)
}

// Mask marks, per spatial pixel, whether the value is usable (not nodata,
// not out of the asset's footprint). Its length always equals the spatial
// pixel count of the buffer it accompanies.
type Mask []bool

// NewMask allocates an all-invalid mask matching spec.
func NewMask(spec TileSpec) Mask {
	return make(Mask, spec.Pixels())
}

// Valid returns the number of valid pixels.
func (m Mask) Valid() int {
	n := 0
	for _, ok := range m {
		if ok {
			n++
		}
	}
	return n
}

// Full reports whether every pixel is valid.
func (m Mask) Full() bool {
	for _, ok := range m {
		if !ok {
			return false
		}
	}
	return true
}
