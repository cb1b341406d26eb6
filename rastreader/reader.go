// Package rastreader reads pre-tiled raster layers from object storage
// and serves them as per-asset tile contributions for the mosaic engine.
// Each layer is stored as snappy-compressed fixed-size cells on a regular
// grid in the layer's native projection; an asset id names one cell.
package rastreader

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"time"
	"unsafe"

	"github.com/golang/snappy"
	"github.com/terrascope/geometry"
	"github.com/terrascope/proj4go"
	"github.com/terrascope/raster"
	"github.com/terrascope/scimage"
	"golang.org/x/net/context"

	"github.com/prl900/gomosaic/mosaic"
)

const (
	webMerc    = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +wktext  +no_defs"
	geographic = "+proj=longlat +ellps=WGS84 +datum=WGS84 +no_defs"
)

// WebMercProj4 is the proj4 string of the output tile grid.
func WebMercProj4() string { return webMerc }

// CellAsset encodes one grid cell as an asset id: "x/y/level/year".
func CellAsset(x, y, level, year int) string {
	return fmt.Sprintf("%d/%d/%d/%d", x, y, level, year)
}

func parseCellAsset(id string) (x, y, level, year int, err error) {
	n, err := fmt.Sscanf(id, "%d/%d/%d/%d", &x, &y, &level, &year)
	if err != nil || n != 4 {
		return 0, 0, 0, 0, fmt.Errorf("malformed cell asset id %q", id)
	}
	return x, y, level, year, nil
}

// pyramidLevel picks the pre-generated pyramid level whose cell
// resolution best matches the requested output resolution.
func pyramidLevel(bbox geometry.BoundingBox, width int) int {
	res := (bbox.Max.X - bbox.Min.X) / float64(width)
	switch {
	case res > 400:
		return 5
	case res > 200:
		return 4
	case res > 100:
		return 3
	case res > 50:
		return 2
	default:
		return 1
	}
}

// Assets lists the layer's grid cells overlapping bbox (web mercator)
// for the given date, west to east and north to south. The order is
// fixed so merge results are reproducible; it is also the priority order
// for strategies that favour earlier assets.
func (l Layer) Assets(bbox geometry.BoundingBox, width, height int, date time.Time) ([]string, error) {
	level := pyramidLevel(bbox, width)
	step := 1 << level

	cov := proj4go.Coverage{BoundingBox: bbox, Proj4: webMerc}
	covNat, err := cov.Transform(l.Proj4)
	if err != nil {
		return nil, fmt.Errorf("reprojecting bbox to layer grid: %w", err)
	}

	minX := int(math.Floor(covNat.BoundingBox.Min.X / l.CellSize))
	minY := int(math.Floor(covNat.BoundingBox.Min.Y / l.CellSize))
	maxX := int(math.Ceil(covNat.BoundingBox.Max.X / l.CellSize))
	maxY := int(math.Ceil(covNat.BoundingBox.Max.Y / l.CellSize))

	// A cell named (x, y) spans [x, x+step] × [y-step, y] in grid units,
	// so x snaps down and y snaps up to the step grid.
	x0 := floorDiv(minX+l.GridOffsetX, step)*step - l.GridOffsetX
	x1 := ceilDiv(maxX+l.GridOffsetX, step)*step - l.GridOffsetX - step
	y0 := floorDiv(minY+l.GridOffsetY, step)*step - l.GridOffsetY + step
	y1 := ceilDiv(maxY+l.GridOffsetY, step)*step - l.GridOffsetY

	var assets []string
	for x := x0; x <= x1; x += step {
		for y := y1; y >= y0; y -= step {
			assets = append(assets, CellAsset(x, y, level, date.Year()))
		}
	}
	return assets, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int { return -floorDiv(-a, b) }

// TileReader reads one layer's cells for a single tile request,
// reprojecting each into its own raster on the requested web mercator
// grid. It implements mosaic.Reader; the merge is the caller's business.
type TileReader struct {
	store  ObjectStore
	layer  Layer
	bbox   geometry.BoundingBox
	logger *slog.Logger
}

func NewTileReader(store ObjectStore, layer Layer, bbox geometry.BoundingBox, logger *slog.Logger) *TileReader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TileReader{
		store:  store,
		layer:  layer,
		bbox:   bbox,
		logger: logger.With("component", "rastreader", "layer", layer.Name),
	}
}

func (r *TileReader) ReadTile(ctx context.Context, asset string, spec mosaic.TileSpec) (*mosaic.Buffer, mosaic.Mask, error) {
	if spec.Bands != 1 {
		return nil, nil, &mosaic.AssetError{Asset: asset, Kind: mosaic.KindDimension,
			Err: fmt.Errorf("layer %s is single band, %d bands requested", r.layer.Name, spec.Bands)}
	}

	x, y, level, year, err := parseCellAsset(asset)
	if err != nil {
		return nil, nil, &mosaic.AssetError{Asset: asset, Kind: mosaic.KindGeneric, Err: err}
	}

	objName := fmt.Sprintf(r.layer.TilePattern, x, y, level, year)
	cdata, err := r.store.Get(ctx, r.layer.Bucket, objName)
	if err != nil {
		kind := mosaic.KindGeneric
		if errors.Is(err, ErrObjectNotFound) {
			kind = mosaic.KindNotFound
		}
		return nil, nil, &mosaic.AssetError{Asset: asset, Kind: kind, Err: err}
	}

	data, err := snappy.Decode(nil, cdata)
	if err != nil {
		return nil, nil, &mosaic.AssetError{Asset: asset, Kind: mosaic.KindDecode,
			Err: fmt.Errorf("decompressing %s: %w", objName, err)}
	}

	step := 1 << level
	cs := r.layer.CellSize
	cellCov := proj4go.Coverage{
		BoundingBox: geometry.BBox(float64(x)*cs, float64(y-step)*cs, float64(x+step)*cs, float64(y)*cs),
		Proj4:       r.layer.Proj4,
	}
	outCov := proj4go.Coverage{BoundingBox: r.bbox, Proj4: webMerc}

	buf, mask, err := r.warpCell(data, cellCov, outCov, spec)
	if err != nil {
		return nil, nil, &mosaic.AssetError{Asset: asset, Kind: mosaic.KindDecode,
			Err: fmt.Errorf("cell %s: %w", objName, err)}
	}

	r.logger.Debug("cell warped", "asset", asset, "object", objName, "valid_pixels", mask.Valid())
	return buf, mask, nil
}

// warpCell decodes the raw cell payload into the layer's pixel type and
// resamples it onto the requested tile grid.
func (r *TileReader) warpCell(data []byte, cellCov, outCov proj4go.Coverage, spec mosaic.TileSpec) (*mosaic.Buffer, mosaic.Mask, error) {
	l := r.layer
	ts := l.TileSize
	rect := image.Rect(0, 0, ts, ts)
	outRect := image.Rect(0, 0, spec.Width, spec.Height)

	switch l.DType {
	case "uint8":
		if len(data) != ts*ts {
			return nil, nil, fmt.Errorf("payload is %d bytes, want %d", len(data), ts*ts)
		}
		nodata := uint8(l.NoData)
		cell := &scimage.GrayU8{Pix: data, Stride: ts, Rect: rect,
			Min: uint8(l.MinVal), Max: uint8(l.MaxVal), NoData: nodata}
		out := scimage.NewGrayU8(outRect, uint8(l.MinVal), uint8(l.MaxVal), nodata)
		fill(out.Pix, nodata)
		warped := &raster.Raster{Image: out, Coverage: outCov}
		warped.Warp(&raster.Raster{Image: cell, Coverage: cellCov})
		buf, mask := samples(out.Pix, nodata, mosaic.Uint8, spec)
		return buf, mask, nil

	case "int16":
		if len(data) != 2*ts*ts {
			return nil, nil, fmt.Errorf("payload is %d bytes, want %d", len(data), 2*ts*ts)
		}
		pix := unsafe.Slice((*int16)(unsafe.Pointer(&data[0])), len(data)/2)
		nodata := int16(l.NoData)
		cell := &scimage.GrayS16{Pix: pix, Stride: ts, Rect: rect,
			Min: int16(l.MinVal), Max: int16(l.MaxVal), NoData: nodata}
		out := scimage.NewGrayS16(outRect, int16(l.MinVal), int16(l.MaxVal), nodata)
		fill(out.Pix, nodata)
		warped := &raster.Raster{Image: out, Coverage: outCov}
		warped.Warp(&raster.Raster{Image: cell, Coverage: cellCov})
		buf, mask := samples(out.Pix, nodata, mosaic.Int16, spec)
		return buf, mask, nil

	case "float32":
		if len(data) != 4*ts*ts {
			return nil, nil, fmt.Errorf("payload is %d bytes, want %d", len(data), 4*ts*ts)
		}
		pix := unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), len(data)/4)
		nodata := l.NoData
		cell := &scimage.GrayF32{Pix: pix, Stride: ts, Rect: rect,
			Min: l.MinVal, Max: l.MaxVal, NoData: nodata}
		out := scimage.NewGrayF32(outRect, l.MinVal, l.MaxVal, nodata)
		fill(out.Pix, nodata)
		warped := &raster.Raster{Image: out, Coverage: outCov}
		warped.Warp(&raster.Raster{Image: cell, Coverage: cellCov})
		buf, mask := samples(out.Pix, nodata, mosaic.Float32, spec)
		return buf, mask, nil
	}
	return nil, nil, fmt.Errorf("unsupported dtype %q", l.DType)
}

func fill[T uint8 | int16 | float32](pix []T, v T) {
	for i := range pix {
		pix[i] = v
	}
}

// samples converts warped pixels to engine samples, masking nodata. The
// v != v clause catches NaN nodata in float layers.
func samples[T uint8 | int16 | float32](pix []T, nodata T, dt mosaic.DType, spec mosaic.TileSpec) (*mosaic.Buffer, mosaic.Mask) {
	buf := mosaic.NewBuffer(spec, dt)
	mask := mosaic.NewMask(spec)
	for p, v := range pix {
		if v == nodata || v != v {
			continue
		}
		mask[p] = true
		buf.Samples[p] = float64(v)
	}
	return buf, mask
}
