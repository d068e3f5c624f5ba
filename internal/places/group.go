package places

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// PlaceGroup is a named feature collection served by the places API.
// Features is nil until the group has been populated.
type PlaceGroup struct {
	ID              string                     `json:"id"`
	Title           string                     `json:"title"`
	PropertyMapping PropertyMapping            `json:"propertyMapping,omitempty"`
	SourceEncoding  string                     `json:"sourceEncoding"`
	DatasetRefs     []string                   `json:"datasetRefs,omitempty"`
	Features        *geojson.FeatureCollection `json:"features,omitempty"`
}

func (g *PlaceGroup) Populated() bool {
	return g != nil && g.Features != nil
}

func (g *PlaceGroup) Len() int {
	if !g.Populated() {
		return 0
	}
	return len(g.Features.Features)
}

// FeatureCollection returns the served GeoJSON form: a FeatureCollection with
// the group metadata as foreign members.
func (g *PlaceGroup) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if g.Populated() {
		fc.Features = g.Features.Features
	}
	fc.ExtraMembers = geojson.Properties{
		"id":             g.ID,
		"title":          g.Title,
		"sourceEncoding": g.SourceEncoding,
	}
	if len(g.PropertyMapping) > 0 {
		fc.ExtraMembers["propertyMapping"] = map[string]string(g.PropertyMapping)
	}
	return fc
}

func (g *PlaceGroup) MarshalGeoJSON() ([]byte, error) {
	return json.Marshal(g.FeatureCollection())
}

// GroupFromGeoJSON reads a FeatureCollection carrying id/title foreign members,
// the format produced by MarshalGeoJSON.
func GroupFromGeoJSON(b []byte) (*PlaceGroup, error) {
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("parse feature collection: %w", err)
	}
	g := &PlaceGroup{Features: fc, SourceEncoding: DefaultEncoding}
	g.ID, _ = fc.ExtraMembers["id"].(string)
	g.Title, _ = fc.ExtraMembers["title"].(string)
	if enc, ok := fc.ExtraMembers["sourceEncoding"].(string); ok && enc != "" {
		g.SourceEncoding = enc
	}
	if pm, ok := fc.ExtraMembers["propertyMapping"].(map[string]any); ok {
		g.PropertyMapping = PropertyMapping{}
		for k, v := range pm {
			if s, ok := v.(string); ok {
				g.PropertyMapping[k] = s
			}
		}
	}
	fc.ExtraMembers = nil
	if g.ID == "" {
		return nil, errors.New(`feature collection has no "id" member`)
	}
	if g.Title == "" {
		g.Title = g.ID
	}
	return g, nil
}
