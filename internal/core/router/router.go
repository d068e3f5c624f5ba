// Package router serves the places API: the catalog of registered place
// groups plus control of the update cycle.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/geodb-places/internal/core/observability"
	"github.com/mohammed-shakir/geodb-places/internal/h3index"
	"github.com/mohammed-shakir/geodb-places/internal/places"
)

const maxBody = 32 << 20

// Catalog is the served set of place groups.
type Catalog interface {
	Group(id string) (*places.PlaceGroup, bool)
	Groups(dataset string) []*places.PlaceGroup
	Register(ctx context.Context, g *places.PlaceGroup) error
}

// Reloader controls the update cycle.
type Reloader interface {
	Trigger(reason string)
	LastReport() (places.Report, bool)
}

type GroupSummary struct {
	ID              string                 `json:"id"`
	Title           string                 `json:"title"`
	SourceEncoding  string                 `json:"sourceEncoding"`
	PropertyMapping places.PropertyMapping `json:"propertyMapping,omitempty"`
	Features        int                    `json:"features"`
}

type api struct {
	logger *slog.Logger
	cat    Catalog
	rl     Reloader
}

// Mount registers the places routes on r. rl may be nil when no update cycle
// runs in this process.
func Mount(r chi.Router, logger *slog.Logger, cat Catalog, rl Reloader) {
	a := &api{logger: logger, cat: cat, rl: rl}
	r.Get("/places", observe("/places", a.listGroups))
	r.Post("/places", observe("/places", a.postGroup))
	r.Get("/places/{id}", observe("/places/{id}", a.getGroup))
	if rl != nil {
		r.Get("/sync", observe("/sync", a.lastReport))
		r.Post("/sync", observe("/sync", a.triggerSync))
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func observe(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

func writeJSON(w http.ResponseWriter, status int, contentType string, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *api) listGroups(w http.ResponseWriter, r *http.Request) {
	groups := a.cat.Groups(strings.TrimSpace(r.URL.Query().Get("dataset")))
	out := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupSummary{
			ID:              g.ID,
			Title:           g.Title,
			SourceEncoding:  g.SourceEncoding,
			PropertyMapping: g.PropertyMapping,
			Features:        g.Len(),
		})
	}
	writeJSON(w, http.StatusOK, "application/json", map[string]any{"placeGroups": out})
}

func (a *api) getGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	g, ok := a.cat.Group(id)
	if !ok {
		http.Error(w, fmt.Sprintf("place group %q not found", id), http.StatusNotFound)
		return
	}

	fc := g.FeatureCollection()
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("bbox")); raw != "" {
		b, err := parseBBox(raw)
		if err != nil {
			http.Error(w, "invalid bbox: "+err.Error(), http.StatusBadRequest)
			return
		}
		fc.Features = withinBound(fc.Features, b)
	}
	if cell := strings.TrimSpace(q.Get("cell")); cell != "" {
		filtered, err := h3index.Filter(fc, cell)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fc.Features = filtered.Features
	}
	writeJSON(w, http.StatusOK, "application/geo+json", fc)
}

func (a *api) postGroup(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) > maxBody {
		http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
		return
	}
	g, err := places.GroupFromGeoJSON(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.cat.Register(r.Context(), g); err != nil {
		a.logger.ErrorContext(r.Context(), "register posted group failed", "group", g.ID, "err", err)
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}
	a.logger.InfoContext(r.Context(), "place group posted", "group", g.ID, "features", g.Len())
	w.Header().Set("Location", "/places/"+g.ID)
	writeJSON(w, http.StatusCreated, "application/json", map[string]any{"id": g.ID, "features": g.Len()})
}

func (a *api) lastReport(w http.ResponseWriter, _ *http.Request) {
	rep, ok := a.rl.LastReport()
	if !ok {
		http.Error(w, "no update cycle has finished yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, "application/json", rep)
}

func (a *api) triggerSync(w http.ResponseWriter, _ *http.Request) {
	a.rl.Trigger("api")
	writeJSON(w, http.StatusAccepted, "application/json", map[string]string{"status": "scheduled"})
}

// parseBBox reads "x1,y1,x2,y2" in EPSG:4326, with an optional trailing
// ",EPSG:4326".
func parseBBox(raw string) (orb.Bound, error) {
	parts := strings.Split(raw, ",")
	switch len(parts) {
	case 4:
	case 5:
		if srid := strings.ToUpper(strings.TrimSpace(parts[4])); srid != "EPSG:4326" {
			return orb.Bound{}, fmt.Errorf("only EPSG:4326 is supported (got %q)", srid)
		}
	default:
		return orb.Bound{}, errors.New("expected x1,y1,x2,y2[,EPSG:4326]")
	}
	var v [4]float64
	for i := range v {
		f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("value %d: %w", i+1, err)
		}
		v[i] = f
	}
	xMin, yMin, xMax, yMax := v[0], v[1], v[2], v[3]
	if !(xMin >= -180 && xMin <= 180 && xMax >= -180 && xMax <= 180) {
		return orb.Bound{}, errors.New("longitude must be in [-180,180]")
	}
	if !(yMin >= -90 && yMin <= 90 && yMax >= -90 && yMax <= 90) {
		return orb.Bound{}, errors.New("latitude must be in [-90,90]")
	}
	if xMax <= xMin || yMax <= yMin {
		return orb.Bound{}, errors.New("coordinates must satisfy x2>x1 and y2>y1")
	}
	return orb.Bound{Min: orb.Point{xMin, yMin}, Max: orb.Point{xMax, yMax}}, nil
}

func withinBound(fs []*geojson.Feature, b orb.Bound) []*geojson.Feature {
	out := make([]*geojson.Feature, 0, len(fs))
	for _, f := range fs {
		if f.Geometry != nil && f.Geometry.Bound().Intersects(b) {
			out = append(out, f)
		}
	}
	return out
}
