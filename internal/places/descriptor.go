package places

import "strings"

const DefaultEncoding = "utf-8"

// PropertyMapping maps the well-known keys label, color and description (and
// any extra keys) onto feature property names or templates.
type PropertyMapping map[string]string

func (m PropertyMapping) Clone() PropertyMapping {
	if m == nil {
		return nil
	}
	out := make(PropertyMapping, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Descriptor configures one place group.
type Descriptor struct {
	Identifier        string          `koanf:"Identifier" json:"identifier"`
	Title             string          `koanf:"Title" json:"title,omitempty"`
	Query             string          `koanf:"Query" json:"query,omitempty"`
	DatasetRefs       []string        `koanf:"DatasetRefs" json:"datasetRefs,omitempty"`
	PropertyMapping   PropertyMapping `koanf:"PropertyMapping" json:"propertyMapping,omitempty"`
	CharacterEncoding string          `koanf:"CharacterEncoding" json:"characterEncoding,omitempty"`
	PlaceGroupRef     string          `koanf:"PlaceGroupRef" json:"placeGroupRef,omitempty"`
}

func (d Descriptor) WithDefaults() Descriptor {
	d.Identifier = strings.TrimSpace(d.Identifier)
	if d.Title == "" {
		d.Title = d.Identifier
	}
	if d.CharacterEncoding == "" {
		d.CharacterEncoding = DefaultEncoding
	}
	return d
}

// Validate rejects descriptors that cannot be built from geoDB data. A
// reference to an externally defined group cannot be combined with a query.
func (d Descriptor) Validate() error {
	switch {
	case strings.TrimSpace(d.Identifier) == "":
		return &ConfigError{Group: d.Identifier, Err: ErrMissingIdentifier}
	case d.PlaceGroupRef != "" && strings.TrimSpace(d.Query) != "":
		return &ConfigError{Group: d.Identifier, Err: ErrRefWithQuery}
	case strings.TrimSpace(d.Query) == "":
		return &ConfigError{Group: d.Identifier, Err: ErrMissingQuery}
	}
	return nil
}
