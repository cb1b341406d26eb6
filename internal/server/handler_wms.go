package server

import (
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/terrascope/geometry"

	"github.com/prl900/gomosaic/rastreader"
)

const capabilitiesTpl = `<?xml version="1.0" encoding="UTF-8"?>
<WMT_MS_Capabilities version="1.1.1">
  <Service>
    <Name>OGC:WMS</Name>
    <Title>gomosaic WMS</Title>
  </Service>
  <Capability>
    <Layer>
      <Title>gomosaic layers</Title>
      <SRS>EPSG:3857</SRS>
{{- range .}}
      <Layer queryable="0">
        <Name>{{.Name}}</Name>
        <Title>{{.Abstract}}</Title>
{{- range .Dates}}
        <Extent name="time">{{.}}</Extent>
{{- end}}
      </Layer>
{{- end}}
    </Layer>
  </Capability>
</WMT_MS_Capabilities>
`

var capabilities = template.Must(template.New("capabilities").Parse(capabilitiesTpl))

// q returns the first value of a query parameter, or "".
func q(params map[string][]string, key string) string {
	if vals, ok := params[key]; ok && len(vals) > 0 {
		return vals[0]
	}
	return ""
}

func (s *Server) handleWMS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	params := r.URL.Query()

	if q(params, "request") == "GetCapabilities" {
		w.Header().Set("Content-Type", "text/xml")
		if err := capabilities.Execute(w, s.layers); err != nil {
			s.logger.Error("writing capabilities", "error", err)
		}
		return
	}

	if q(params, "service") != "WMS" || q(params, "request") != "GetMap" || q(params, "srs") != "EPSG:3857" {
		http.Error(w, "malformed WMS GetMap request", http.StatusBadRequest)
		return
	}

	bboxCoords := strings.Split(q(params, "bbox"), ",")
	if len(bboxCoords) != 4 {
		http.Error(w, "malformed WMS GetMap request: bbox", http.StatusBadRequest)
		return
	}
	pts := make([]float64, 4)
	for i, coord := range bboxCoords {
		var err error
		pts[i], err = strconv.ParseFloat(coord, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("malformed WMS GetMap request: %v", err), http.StatusBadRequest)
			return
		}
	}
	bbox := geometry.BBox(pts[0], pts[1], pts[2], pts[3])

	if bbox.Area() > s.cfg.MaxArea {
		http.Error(w, fmt.Sprintf("requested area too big: %f", bbox.Area()), http.StatusRequestEntityTooLarge)
		return
	}

	width, err := strconv.Atoi(q(params, "width"))
	if err != nil || width < 1 {
		http.Error(w, "malformed WMS GetMap request: width", http.StatusBadRequest)
		return
	}
	height, err := strconv.Atoi(q(params, "height"))
	if err != nil || height < 1 {
		http.Error(w, "malformed WMS GetMap request: height", http.StatusBadRequest)
		return
	}

	layerName := strings.Split(q(params, "layers"), ",")[0]
	layer, ok := s.layers[layerName]
	if !ok {
		http.Error(w, fmt.Sprintf("layer %s not found", layerName), http.StatusNotFound)
		return
	}

	date, err := s.resolveDate(layer, q(params, "time"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	strategy := s.strategyFor(q(params, "styles"), layer)
	img, _, err := s.renderTile(r.Context(), layer, bbox, width, height, date, strategy)
	if err != nil {
		s.writeTileError(w, r, err)
		return
	}

	// Tiles are immutable per date: let browsers and proxies cache.
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		s.logger.Error("encoding tile", "error", err)
	}
}

// resolveDate validates the request's time against the layer's published
// dates, defaulting to the first published date.
func (s *Server) resolveDate(layer rastreader.Layer, requested string) (time.Time, error) {
	if requested == "" {
		if len(layer.Dates) == 0 {
			return time.Time{}, fmt.Errorf("layer %s has no published dates", layer.Name)
		}
		requested = layer.Dates[0]
	} else {
		found := false
		for _, d := range layer.Dates {
			if d == requested {
				found = true
				break
			}
		}
		if !found {
			return time.Time{}, fmt.Errorf("date %s not available; published dates: %v", requested, layer.Dates)
		}
	}
	date, err := time.Parse(time.RFC3339, requested)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse date %s: %v", requested, err)
	}
	return date, nil
}
