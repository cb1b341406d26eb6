package server

import (
	"encoding/json"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prl900/gomosaic/internal/tilegrid"
)

// handleXYZTile serves GET /tiles/{layer}/{z}/{x}/{y}.png. The optional
// time and strategy query parameters match the WMS endpoint's time and
// styles.
func (s *Server) handleXYZTile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	layer, ok := s.layers[chi.URLParam(r, "layer")]
	if !ok {
		http.Error(w, fmt.Sprintf("layer %s not found", chi.URLParam(r, "layer")), http.StatusNotFound)
		return
	}

	var tile tilegrid.Tile
	var err error
	if tile.Z, err = strconv.Atoi(chi.URLParam(r, "z")); err == nil {
		if tile.X, err = strconv.Atoi(chi.URLParam(r, "x")); err == nil {
			tile.Y, err = strconv.Atoi(chi.URLParam(r, "y"))
		}
	}
	if err != nil || !tile.Valid() {
		http.Error(w, "invalid tile address", http.StatusBadRequest)
		return
	}

	date, err := s.resolveDate(layer, r.URL.Query().Get("time"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	strategy := s.strategyFor(r.URL.Query().Get("strategy"), layer)
	img, _, err := s.renderTile(r.Context(), layer, tile.BBox(), tilegrid.TileSize, tilegrid.TileSize, date, strategy)
	if err != nil {
		s.writeTileError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		s.logger.Error("encoding tile", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"layers": len(s.layers),
		"uptime": time.Since(s.startTime).String(),
	})
}
