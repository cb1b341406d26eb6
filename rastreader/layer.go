package rastreader

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"
)

// Layer describes one raster dataset: where its pre-tiled cells live,
// how the grid is laid out, and how values map to pixels.
type Layer struct {
	Name     string   `json:"name"`
	Abstract string   `json:"abstract"`
	Dates    []string `json:"dates_iso8601"`

	// Object storage location. TilePattern is a fmt pattern taking the
	// cell x, y, pyramid level and year, e.g.
	// "fc_metrics_WCF_%+04d_%+04d_l%d_%d.snp".
	Bucket      string `json:"bucket"`
	TilePattern string `json:"tile_pattern"`

	// Grid layout in the layer's native projection. Cells are TileSize
	// pixels square and CellSize map units wide; the offsets anchor the
	// grid origin (190/-100 for the DEA Albers grid).
	TileSize    int     `json:"tile_size"`
	CellSize    float64 `json:"cell_size"`
	GridOffsetX int     `json:"grid_offset_x"`
	GridOffsetY int     `json:"grid_offset_y"`

	// Pixel semantics. DType is one of uint8, int16, float32.
	DType  string  `json:"dtype"`
	MinVal float32 `json:"min_value"`
	MaxVal float32 `json:"max_value"`
	NoData float32 `json:"no_data"`

	Proj4   string        `json:"proj4"`
	Palette []color.NRGBA `json:"palette"`

	// Strategy is the merge strategy used when a request names none.
	Strategy string `json:"merge_strategy"`
}

type Layers map[string]Layer

// ReadLayers loads layer metadata from a JSON file and applies defaults.
func ReadLayers(fileName string) (Layers, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}

	lyrs := Layers{}
	if err := json.Unmarshal(data, &lyrs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", fileName, err)
	}

	for name, l := range lyrs {
		if l.Name == "" {
			l.Name = name
		}
		if l.TileSize == 0 {
			l.TileSize = 400
		}
		if l.CellSize == 0 {
			l.CellSize = 1e4
		}
		if l.DType == "" {
			l.DType = "uint8"
		}
		if l.Strategy == "" {
			l.Strategy = "first"
		}
		if err := l.validate(); err != nil {
			return nil, fmt.Errorf("layer %s: %w", name, err)
		}
		lyrs[name] = l
	}
	return lyrs, nil
}

func (l Layer) validate() error {
	switch l.DType {
	case "uint8", "int16", "float32":
	default:
		return fmt.Errorf("unsupported dtype %q", l.DType)
	}
	if l.Bucket == "" {
		return fmt.Errorf("missing bucket")
	}
	if l.TilePattern == "" {
		return fmt.Errorf("missing tile_pattern")
	}
	if l.Proj4 == "" {
		return fmt.Errorf("missing proj4")
	}
	return nil
}
