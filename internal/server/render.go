package server

import (
	"context"
	"errors"
	"image"
	"net/http"
	"time"

	"github.com/terrascope/geometry"
	"github.com/terrascope/scimage"
	"github.com/terrascope/scimage/scicolor"

	"github.com/prl900/gomosaic/mosaic"
	"github.com/prl900/gomosaic/rastreader"
)

// renderTile assembles the layer's cells covering bbox into one tile and
// maps it through the layer's palette. The returned asset list is the
// provenance of the pixels actually used.
func (s *Server) renderTile(ctx context.Context, layer rastreader.Layer, bbox geometry.BoundingBox, width, height int, date time.Time, strategyName string) (*image.Paletted, []string, error) {
	spec := mosaic.TileSpec{Bands: 1, Width: width, Height: height}

	assets, err := layer.Assets(bbox, width, height, date)
	if err != nil {
		return nil, nil, err
	}

	strategy, err := mosaic.NewStrategy(strategyName, spec)
	if err != nil {
		return nil, nil, err
	}

	reader := rastreader.NewTileReader(s.store, layer, bbox, s.logger)
	m, err := mosaic.Assemble(ctx, assets, spec, reader, strategy, mosaic.Options{
		MaxWorkers: s.cfg.MaxWorkers,
		MaxAssets:  s.cfg.MaxAssets,
		Timeout:    time.Duration(s.cfg.AssetTimeout),
		Logger:     s.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(m.Failures) > 0 {
		s.logger.Debug("partial mosaic", "layer", layer.Name,
			"assets_used", len(m.Assets), "assets_failed", len(m.Failures))
	}

	// A float32 grayscale carries every supported layer dtype; the
	// palette mapping scales the layer's value range.
	img := scimage.NewGrayF32(image.Rect(0, 0, width, height), layer.MinVal, layer.MaxVal, layer.NoData)
	for p := range img.Pix {
		img.Pix[p] = layer.NoData
	}
	for p, ok := range m.Mask {
		if ok {
			img.Pix[p] = float32(m.Buffer.At(0, p))
		}
	}
	return img.AsPaletted(scicolor.GradientNRGBAPalette(layer.Palette)), m.Assets, nil
}

// strategyFor resolves the request's merge strategy: the request wins,
// then the layer's default, then the server-wide default.
func (s *Server) strategyFor(requested string, layer rastreader.Layer) string {
	if requested != "" {
		return requested
	}
	if layer.Strategy != "" {
		return layer.Strategy
	}
	return s.cfg.DefaultStrategy
}

// writeTileError maps assembly failures onto HTTP statuses: an empty
// mosaic is 404, bad configuration is the client's fault, the rest is
// ours.
func (s *Server) writeTileError(w http.ResponseWriter, r *http.Request, err error) {
	var nva *mosaic.NoValidAssetsError
	var cfg mosaic.ConfigError
	switch {
	case errors.As(err, &nva):
		http.Error(w, "no data for requested tile", http.StatusNotFound)
	case errors.As(err, &cfg):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("tile render failed", "error", err,
			"request_id", RequestIDFromContext(r.Context()))
		http.Error(w, "internal error rendering tile", http.StatusInternalServerError)
	}
}
