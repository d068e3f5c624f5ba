package geodb

import "github.com/paulmach/orb/geojson"

// PropertyInfo describes one column of a collection.
type PropertyInfo struct {
	Type string `json:"type"`
}

// CollectionInfo is the schema returned by geodb_get_collection_info.
type CollectionInfo struct {
	Required   []string                `json:"required"`
	Properties map[string]PropertyInfo `json:"properties"`
}

func (ci CollectionInfo) HasProperty(name string) bool {
	_, ok := ci.Properties[name]
	return ok
}

// Collection is the result of a collection query. Coordinates are in the
// collection's native SRID.
type Collection struct {
	Database string
	Name     string
	SRID     int
	Features *geojson.FeatureCollection
}
