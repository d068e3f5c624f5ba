// Package h3index tags place features with the H3 cell of their
// representative point and filters features by cell.
package h3index

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	h3 "github.com/uber/h3-go/v4"
)

// CellProperty is the feature property holding the H3 cell.
const CellProperty = "h3_cell"

var ErrEmptyGeometry = errors.New("geometry has no coordinates")

// Annotator adds CellProperty to features at a fixed resolution.
type Annotator struct {
	res int
}

func NewAnnotator(res int) (*Annotator, error) {
	if err := validateRes(res); err != nil {
		return nil, err
	}
	return &Annotator{res: res}, nil
}

func (a *Annotator) Res() int { return a.res }

func (a *Annotator) Annotate(f *geojson.Feature) error {
	cell, err := CellFor(f.Geometry, a.res)
	if err != nil {
		return err
	}
	if f.Properties == nil {
		f.Properties = geojson.Properties{}
	}
	f.Properties[CellProperty] = cell
	return nil
}

// CellFor returns the cell of g's representative point: the point itself or
// the planar centroid of any other geometry. Coordinates are EPSG:4326.
func CellFor(g orb.Geometry, res int) (string, error) {
	if err := validateRes(res); err != nil {
		return "", err
	}
	p, err := representative(g)
	if err != nil {
		return "", err
	}
	c, err := h3.LatLngToCell(h3.LatLng{Lat: p.Lat(), Lng: p.Lon()}, res)
	if err != nil {
		return "", fmt.Errorf("h3 cell for %v: %w", p, err)
	}
	return c.String(), nil
}

func representative(g orb.Geometry) (orb.Point, error) {
	switch v := g.(type) {
	case nil:
		return orb.Point{}, ErrEmptyGeometry
	case orb.Point:
		return v, nil
	}
	if isEmpty(g) {
		return orb.Point{}, ErrEmptyGeometry
	}
	c, _ := planar.CentroidArea(g)
	return c, nil
}

func isEmpty(g orb.Geometry) bool {
	switch v := g.(type) {
	case orb.MultiPoint:
		return len(v) == 0
	case orb.LineString:
		return len(v) == 0
	case orb.MultiLineString:
		return len(v) == 0
	case orb.Ring:
		return len(v) == 0
	case orb.Polygon:
		return len(v) == 0 || len(v[0]) == 0
	case orb.MultiPolygon:
		return len(v) == 0
	case orb.Collection:
		return len(v) == 0
	}
	return false
}

// Within reports whether cell lies inside container, which may be at the
// same or a coarser resolution.
func Within(cell, container string) (bool, error) {
	c, err := parse(cell)
	if err != nil {
		return false, err
	}
	p, err := parse(container)
	if err != nil {
		return false, err
	}
	if p.Resolution() > c.Resolution() {
		return false, nil
	}
	if p.Resolution() == c.Resolution() {
		return c == p, nil
	}
	parent, err := c.Parent(p.Resolution())
	if err != nil {
		return false, fmt.Errorf("h3 parent: %w", err)
	}
	return parent == p, nil
}

// Filter returns the features of fc whose CellProperty lies within container.
// Features without a cell are skipped.
func Filter(fc *geojson.FeatureCollection, container string) (*geojson.FeatureCollection, error) {
	if _, err := parse(container); err != nil {
		return nil, err
	}
	out := geojson.NewFeatureCollection()
	if fc == nil {
		return out, nil
	}
	for _, f := range fc.Features {
		cell, _ := f.Properties[CellProperty].(string)
		if cell == "" {
			continue
		}
		ok, err := Within(cell, container)
		if err != nil {
			return nil, err
		}
		if ok {
			out.Append(f)
		}
	}
	return out, nil
}

func parse(s string) (h3.Cell, error) {
	var c h3.Cell
	if err := c.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("parse cell %q: %w", s, err)
	}
	if !c.IsValid() {
		return 0, fmt.Errorf("invalid h3 cell %q", s)
	}
	return c, nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
