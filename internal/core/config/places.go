package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/mohammed-shakir/geodb-places/internal/places"
)

const (
	geoDBBlock     = "GeoDBConf"
	placeGroupsKey = geoDBBlock + ".PlaceGroups"
)

// PlacesFile is the declarative plugin configuration. YAML and JSON are both
// accepted.
type PlacesFile struct {
	k *koanf.Koanf
}

// LoadPlaces reads the places configuration. A missing file yields an empty
// configuration, which disables the geoDB feature.
func LoadPlaces(path string) (*PlacesFile, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load places config %q: %w", path, err)
		}
	}
	return &PlacesFile{k: k}, nil
}

// PlacesFromBytes parses an in-memory configuration document.
func PlacesFromBytes(b []byte) (*PlacesFile, error) {
	m, err := yaml.Parser().Unmarshal(b)
	if err != nil {
		return nil, fmt.Errorf("parse places config: %w", err)
	}
	k := koanf.New(".")
	if err := k.Load(confmap(m), nil); err != nil {
		return nil, fmt.Errorf("load places config: %w", err)
	}
	return &PlacesFile{k: k}, nil
}

// HasGeoDB reports whether the connection block is present.
func (p *PlacesFile) HasGeoDB() bool {
	return p != nil && p.k.Exists(geoDBBlock)
}

func (p *PlacesFile) Descriptors() ([]places.Descriptor, error) {
	if !p.HasGeoDB() || !p.k.Exists(placeGroupsKey) {
		return nil, nil
	}
	var out []places.Descriptor
	if err := p.k.Unmarshal(placeGroupsKey, &out); err != nil {
		return nil, &ConfigError{Property: "PlaceGroups", Err: err}
	}
	for i := range out {
		out[i] = out[i].WithDefaults()
	}
	return out, nil
}

// Connection holds the resolved geoDB connection parameters.
type Connection struct {
	ServerURL    string
	ServerPort   int
	ClientID     string
	ClientSecret string
	Audience     string
	AuthDomain   Value
	GeoServerURL Value
}

// Resolver layers the environment over the file's connection block.
func (p *PlacesFile) Resolver() *Resolver {
	var k *koanf.Koanf
	if p != nil {
		k = p.k
	}
	return NewResolver(NewEnvSource(), NewKoanfSource(k, geoDBBlock))
}

// ResolveConnection resolves every connection property, failing on the first
// missing mandatory one.
func ResolveConnection(r *Resolver) (Connection, error) {
	var (
		c    Connection
		errs []error
	)
	get := func(name string, mandatory bool) Value {
		v, err := r.Resolve(Property{Name: name, Mandatory: mandatory})
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	url := get(PropServerURL, true)
	port := get(PropServerPort, true)
	c.ClientID = get(PropClientID, true).Raw
	c.ClientSecret = get(PropClientSecret, true).Raw
	c.Audience = get(PropAudience, true).Raw
	c.AuthDomain = get(PropAuthDomain, false)
	c.GeoServerURL = get(PropGeoServerURL, false)
	if len(errs) > 0 {
		return Connection{}, errs[0]
	}

	c.ServerURL = url.Raw
	n, err := port.Int()
	if err != nil {
		return Connection{}, err
	}
	c.ServerPort = n
	return c, nil
}
