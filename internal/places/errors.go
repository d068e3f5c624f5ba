package places

import (
	"errors"
	"fmt"
)

var (
	ErrMissingIdentifier = errors.New("place group has no identifier")
	ErrMissingQuery      = errors.New("place group has no query")
	ErrRefWithQuery      = errors.New("PlaceGroupRef cannot be combined with a geoDB query")
	ErrMalformedQuery    = errors.New(`query must look like "<database>_<collection>?<constraints>"`)
	ErrNoSelectClause    = errors.New("constraints have no select= clause to extend")
)

// ConfigError is a descriptor problem detected before any remote call.
type ConfigError struct {
	Group string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Group == "" {
		return fmt.Sprintf("place group config: %v", e.Err)
	}
	return fmt.Sprintf("place group %q config: %v", e.Group, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ParseError reports a feature property value that could not be normalized.
type ParseError struct {
	Feature  int
	Property string
	Value    any
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("feature %d: parse %s=%v: %v", e.Feature, e.Property, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
