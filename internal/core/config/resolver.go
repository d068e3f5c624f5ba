package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/v2"
)

// Property names of the geoDB connection block. They double as environment
// variable names.
const (
	PropServerURL    = "GEODB_API_SERVER_URL"
	PropServerPort   = "GEODB_API_SERVER_PORT"
	PropClientID     = "GEODB_AUTH_CLIENT_ID"
	PropClientSecret = "GEODB_AUTH_CLIENT_SECRET"
	PropAudience     = "GEODB_AUTH_AUD"
	PropAuthDomain   = "GEODB_AUTH_DOMAIN"
	PropGeoServerURL = "GEOSERVER_SERVER_URL"
)

// required whatever Property.Mandatory says
var alwaysMandatory = map[string]struct{}{
	PropClientID:     {},
	PropClientSecret: {},
	PropAudience:     {},
}

var ErrMissingProperty = errors.New("missing mandatory property")

// ConfigError reports a configuration problem tied to one property.
type ConfigError struct {
	Property string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Property, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Source is one layer of configuration values.
type Source interface {
	Name() string
	Lookup(key string) (string, bool)
}

type envSource struct {
	lookup func(string) (string, bool)
}

// NewEnvSource reads process environment variables. Empty values count as unset.
func NewEnvSource() Source {
	return envSource{lookup: os.LookupEnv}
}

func (envSource) Name() string { return "env" }

func (s envSource) Lookup(key string) (string, bool) {
	v, ok := s.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// MapSource serves values from a fixed map.
type MapSource struct {
	SourceName string
	Values     map[string]string
}

func (m MapSource) Name() string { return m.SourceName }

func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m.Values[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

type koanfSource struct {
	k      *koanf.Koanf
	prefix string
}

// NewKoanfSource exposes keys below prefix of a loaded koanf tree.
func NewKoanfSource(k *koanf.Koanf, prefix string) Source {
	return koanfSource{k: k, prefix: prefix}
}

func (koanfSource) Name() string { return "config" }

func (s koanfSource) Lookup(key string) (string, bool) {
	if s.k == nil {
		return "", false
	}
	path := key
	if s.prefix != "" {
		path = s.prefix + "." + key
	}
	v := s.k.Get(path)
	if v == nil {
		return "", false
	}
	str := strings.TrimSpace(fmt.Sprint(v))
	if str == "" {
		return "", false
	}
	return str, true
}

type Property struct {
	Name      string
	Mandatory bool
}

// Value is a resolved property. Set is false for an absent optional property.
type Value struct {
	Name   string
	Raw    string
	Source string
	Set    bool
}

func (v Value) String() string { return v.Raw }

func (v Value) Int() (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v.Raw))
	if err != nil {
		return 0, &ConfigError{Property: v.Name, Err: fmt.Errorf("not an integer: %q", v.Raw)}
	}
	return n, nil
}

// Resolver queries its sources in order; the first source holding a value wins.
type Resolver struct {
	sources []Source
}

func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

func (r *Resolver) Resolve(p Property) (Value, error) {
	for _, s := range r.sources {
		if v, ok := s.Lookup(p.Name); ok {
			return Value{Name: p.Name, Raw: v, Source: s.Name(), Set: true}, nil
		}
	}
	_, forced := alwaysMandatory[p.Name]
	if p.Mandatory || forced {
		return Value{}, &ConfigError{Property: p.Name, Err: ErrMissingProperty}
	}
	return Value{Name: p.Name}, nil
}
