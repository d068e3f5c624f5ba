// Package reproject converts feature geometries to EPSG:4326.
package reproject

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	"github.com/wroge/wgs84"
)

const WGS84 = 4326

var ErrUnsupportedCRS = errors.New("unsupported source CRS")

var epsg = wgs84.EPSG()

// web mercator and its historical aliases
var mercatorSRIDs = map[int]struct{}{
	3857:   {},
	3785:   {},
	900913: {},
	102100: {},
	102113: {},
}

// Projection returns the transform from srid to WGS84 lon/lat. A nil
// projection means the coordinates are already WGS84.
func Projection(srid int) (orb.Projection, error) {
	if srid == WGS84 || srid == 0 {
		return nil, nil
	}
	if _, ok := mercatorSRIDs[srid]; ok {
		return project.Mercator.ToWGS84, nil
	}
	fn, err := epsg.SafeTransform(srid, WGS84)
	if err != nil {
		return nil, fmt.Errorf("%w: EPSG:%d: %v", ErrUnsupportedCRS, srid, err)
	}
	return func(p orb.Point) orb.Point {
		lon, lat, _ := fn(p[0], p[1], 0)
		return orb.Point{lon, lat}
	}, nil
}

// ToWGS84 rewrites every geometry of fc in place. SRID 0 is treated as
// already being WGS84, which is what PostGIS reports for untyped columns.
func ToWGS84(fc *geojson.FeatureCollection, srid int) error {
	proj, err := Projection(srid)
	if err != nil {
		return err
	}
	if proj == nil || fc == nil {
		return nil
	}
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		f.Geometry = project.Geometry(f.Geometry, proj)
		if f.BBox != nil {
			f.BBox = geojson.NewBBox(f.Geometry.Bound())
		}
	}
	if fc.BBox != nil {
		fc.BBox = nil
	}
	return nil
}
