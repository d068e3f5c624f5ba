package places

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// FeatureAnnotator adds derived properties to a normalized feature.
type FeatureAnnotator interface {
	Annotate(f *geojson.Feature) error
}

// Fetched is a geoDB result already reprojected to EPSG:4326, carrying the
// descriptor it was produced for.
type Fetched struct {
	Descriptor Descriptor
	Features   *geojson.FeatureCollection
}

type Assembler struct {
	Registry  Registry
	BaseURL   string
	Annotator FeatureAnnotator
}

// Shell returns the cached group for id, or a fresh unpopulated one.
func (a *Assembler) Shell(ctx context.Context, id string, d Descriptor) (*PlaceGroup, error) {
	g, ok, err := a.Registry.GetCachedGroup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cached group %q: %w", id, err)
	}
	if ok && g != nil {
		return g, nil
	}
	d = d.WithDefaults()
	return &PlaceGroup{
		ID:              id,
		Title:           d.Title,
		PropertyMapping: a.Registry.PropertyMapping(a.BaseURL, d),
		SourceEncoding:  d.CharacterEncoding,
		DatasetRefs:     append([]string(nil), d.DatasetRefs...),
	}, nil
}

// Assemble populates the group for id from f and registers it. When the
// cached group is already populated nothing happens and changed is false.
func (a *Assembler) Assemble(ctx context.Context, id string, f Fetched) (g *PlaceGroup, dropped int, changed bool, err error) {
	if err := f.Descriptor.Validate(); err != nil {
		return nil, 0, false, err
	}
	g, err = a.Shell(ctx, id, f.Descriptor)
	if err != nil {
		return nil, 0, false, err
	}
	if g.Populated() {
		return g, 0, false, nil
	}

	fc, dropped, err := a.normalize(f.Features)
	if err != nil {
		return nil, 0, false, err
	}
	g.Features = fc

	if err := a.Registry.SetCachedGroup(ctx, id, g); err != nil {
		return nil, 0, false, fmt.Errorf("cache group %q: %w", id, err)
	}
	if err := a.Registry.AddGroup(ctx, g, f.Descriptor.DatasetRefs); err != nil {
		return nil, 0, false, fmt.Errorf("add group %q: %w", id, err)
	}
	return g, dropped, true, nil
}

// normalize copies the features that have a geometry and canonicalizes their
// time property.
func (a *Assembler) normalize(in *geojson.FeatureCollection) (*geojson.FeatureCollection, int, error) {
	out := geojson.NewFeatureCollection()
	if in == nil {
		return out, 0, nil
	}
	dropped := 0
	for i, f := range in.Features {
		if f == nil || f.Geometry == nil {
			dropped++
			continue
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		if err := NormalizeTime(f.Properties); err != nil {
			if pe, ok := err.(*ParseError); ok {
				pe.Feature = i
			}
			return nil, 0, err
		}
		if a.Annotator != nil {
			if err := a.Annotator.Annotate(f); err != nil {
				return nil, 0, &ParseError{Feature: i, Property: "geometry", Value: f.Geometry.GeoJSONType(), Err: err}
			}
		}
		out.Append(f)
	}
	return out, dropped, nil
}
