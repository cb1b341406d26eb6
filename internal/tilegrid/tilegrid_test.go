package tilegrid

import (
	"math"
	"testing"
)

func TestTileValidity(t *testing.T) {
	cases := []struct {
		tile Tile
		want bool
	}{
		{Tile{Z: 0, X: 0, Y: 0}, true},
		{Tile{Z: 1, X: 1, Y: 1}, true},
		{Tile{Z: 1, X: 2, Y: 0}, false},
		{Tile{Z: 3, X: -1, Y: 0}, false},
		{Tile{Z: -1, X: 0, Y: 0}, false},
		{Tile{Z: 25, X: 0, Y: 0}, false},
	}
	for _, c := range cases {
		if got := c.tile.Valid(); got != c.want {
			t.Errorf("%+v: valid = %v, want %v", c.tile, got, c.want)
		}
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestTileBBox(t *testing.T) {
	world := Tile{Z: 0, X: 0, Y: 0}.BBox()
	if !near(world.Min.X, -originShift) || !near(world.Max.X, originShift) ||
		!near(world.Min.Y, -originShift) || !near(world.Max.Y, originShift) {
		t.Errorf("z0 bbox = %+v, want full extent", world)
	}

	// Top-left quadrant at z1: west of and above the origin.
	q := Tile{Z: 1, X: 0, Y: 0}.BBox()
	if !near(q.Min.X, -originShift) || !near(q.Max.X, 0) || !near(q.Min.Y, 0) || !near(q.Max.Y, originShift) {
		t.Errorf("z1 0/0 bbox = %+v, want north-west quadrant", q)
	}
}
