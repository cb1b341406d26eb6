// Package server exposes the mosaic engine over HTTP: a WMS GetMap
// endpoint and an XYZ tile endpoint, both returning paletted PNG tiles.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prl900/gomosaic/internal/config"
	"github.com/prl900/gomosaic/rastreader"
)

// Server routes tile requests to the mosaic engine.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	cfg       config.Config
	layers    rastreader.Layers
	store     rastreader.ObjectStore
	startTime time.Time
}

// New creates a server with all routes registered.
func New(cfg config.Config, layers rastreader.Layers, store rastreader.ObjectStore, logger *slog.Logger) *Server {
	s := &Server{
		logger:    logger.With("component", "server"),
		cfg:       cfg,
		layers:    layers,
		store:     store,
		startTime: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Get("/wms", s.handleWMS)
	r.Get("/tiles/{layer}/{z}/{x}/{y}.png", s.handleXYZTile)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
