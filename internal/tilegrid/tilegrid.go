// Package tilegrid maps XYZ tile coordinates to web mercator bounding
// boxes.
package tilegrid

import (
	"github.com/terrascope/geometry"
)

// TileSize is the output size in pixels of a standard slippy-map tile.
const TileSize = 256

// Half the web mercator extent in metres.
const originShift = 20037508.342789244

// Tile is an XYZ tile address (y counted from the north).
type Tile struct {
	Z, X, Y int
}

// Valid reports whether the address exists in the pyramid.
func (t Tile) Valid() bool {
	if t.Z < 0 || t.Z > 24 {
		return false
	}
	n := 1 << t.Z
	return t.X >= 0 && t.X < n && t.Y >= 0 && t.Y < n
}

// BBox returns the tile's bounding box in web mercator metres.
func (t Tile) BBox() geometry.BoundingBox {
	size := 2 * originShift / float64(int(1)<<t.Z)
	minX := -originShift + float64(t.X)*size
	maxY := originShift - float64(t.Y)*size
	return geometry.BBox(minX, maxY-size, minX+size, maxY)
}
