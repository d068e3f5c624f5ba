package config

import "errors"

// confmap is a koanf provider over an already parsed map.
type confmap map[string]any

func (m confmap) ReadBytes() ([]byte, error) {
	return nil, errors.New("confmap provider does not support ReadBytes")
}

func (m confmap) Read() (map[string]any, error) {
	return m, nil
}
