package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const placesYAML = `
GeoDBConf:
  GEODB_API_SERVER_URL: https://geodb.example
  GEODB_API_SERVER_PORT: 443
  GEODB_AUTH_CLIENT_ID: file-id
  GEODB_AUTH_CLIENT_SECRET: file-secret
  GEODB_AUTH_AUD: https://geodb.example/api
  PlaceGroups:
    - Identifier: cities
      Query: mydb_cities?select=name
      DatasetRefs: [ds1, ds2]
      PropertyMapping:
        label: name
        image: ${base_url}/images/${name}.png
    - Identifier: lakes
      Title: Lakes of Europe
      CharacterEncoding: latin-1
      Query: mydb_lakes?select=name&area=gt.10
`

func clearGeoDBEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{PropServerURL, PropServerPort, PropClientID, PropClientSecret, PropAudience, PropAuthDomain, PropGeoServerURL} {
		t.Setenv(k, "")
	}
}

func TestResolver_FirstSourceWins(t *testing.T) {
	r := NewResolver(
		MapSource{SourceName: "env", Values: map[string]string{PropServerURL: "https://env"}},
		MapSource{SourceName: "config", Values: map[string]string{PropServerURL: "https://file", PropServerPort: "8080"}},
	)
	v, err := r.Resolve(Property{Name: PropServerURL, Mandatory: true})
	require.NoError(t, err)
	assert.Equal(t, "https://env", v.Raw)
	assert.Equal(t, "env", v.Source)

	v, err = r.Resolve(Property{Name: PropServerPort, Mandatory: true})
	require.NoError(t, err)
	n, err := v.Int()
	require.NoError(t, err)
	assert.Equal(t, 8080, n)
}

func TestResolver_OptionalUnsetAndMandatoryMissing(t *testing.T) {
	r := NewResolver(MapSource{SourceName: "config"})

	v, err := r.Resolve(Property{Name: PropAuthDomain})
	require.NoError(t, err)
	assert.False(t, v.Set)

	_, err = r.Resolve(Property{Name: PropServerURL, Mandatory: true})
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, PropServerURL, ce.Property)
	assert.ErrorIs(t, err, ErrMissingProperty)
}

func TestResolver_CredentialsAlwaysMandatory(t *testing.T) {
	r := NewResolver(MapSource{SourceName: "config"})
	for _, name := range []string{PropClientID, PropClientSecret, PropAudience} {
		_, err := r.Resolve(Property{Name: name, Mandatory: false})
		assert.ErrorIs(t, err, ErrMissingProperty, name)
	}
}

func TestLoadPlaces_DescriptorsAndConnection(t *testing.T) {
	clearGeoDBEnv(t)
	path := filepath.Join(t.TempDir(), "places.yaml")
	require.NoError(t, os.WriteFile(path, []byte(placesYAML), 0o600))

	f, err := LoadPlaces(path)
	require.NoError(t, err)
	require.True(t, f.HasGeoDB())

	descs, err := f.Descriptors()
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, "cities", descs[0].Identifier)
	assert.Equal(t, "cities", descs[0].Title)
	assert.Equal(t, []string{"ds1", "ds2"}, descs[0].DatasetRefs)
	assert.Equal(t, "${base_url}/images/${name}.png", descs[0].PropertyMapping["image"])
	assert.Equal(t, "utf-8", descs[0].CharacterEncoding)
	assert.Equal(t, "Lakes of Europe", descs[1].Title)
	assert.Equal(t, "latin-1", descs[1].CharacterEncoding)
	assert.Equal(t, "mydb_lakes?select=name&area=gt.10", descs[1].Query)

	t.Setenv(PropClientID, "env-id")
	conn, err := ResolveConnection(f.Resolver())
	require.NoError(t, err)
	assert.Equal(t, "https://geodb.example", conn.ServerURL)
	assert.Equal(t, 443, conn.ServerPort)
	assert.Equal(t, "env-id", conn.ClientID)
	assert.Equal(t, "file-secret", conn.ClientSecret)
	assert.False(t, conn.AuthDomain.Set)
}

func TestLoadPlaces_MissingFileDisablesFeature(t *testing.T) {
	f, err := LoadPlaces(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.False(t, f.HasGeoDB())
	descs, err := f.Descriptors()
	require.NoError(t, err)
	assert.Empty(t, descs)
}

func TestResolveConnection_MissingSecret(t *testing.T) {
	clearGeoDBEnv(t)
	f, err := PlacesFromBytes([]byte(`
GeoDBConf:
  GEODB_API_SERVER_URL: https://geodb.example
  GEODB_API_SERVER_PORT: 443
  GEODB_AUTH_CLIENT_ID: id
  GEODB_AUTH_AUD: aud
`))
	require.NoError(t, err)
	_, err = ResolveConnection(f.Resolver())
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, PropClientSecret, ce.Property)
}

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"ADDR", "PLACES_BASE_URL", "CACHE_TTL", "KAFKA_BROKERS", "H3_RES", "STOP_ON_ERROR"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	assert.Equal(t, ":8090", c.Addr)
	assert.Equal(t, "http://127.0.0.1:8090", c.BaseURL)
	assert.Equal(t, time.Hour, c.CacheTTL)
	assert.False(t, c.Events.Enabled)
	assert.False(t, c.StopOnError)
	assert.Equal(t, H3Disabled, c.H3Res)

	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("H3_RES", "42")
	t.Setenv("STOP_ON_ERROR", "yes")
	c = FromEnv()
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Events.Brokers)
	assert.True(t, c.Events.Enabled)
	assert.Equal(t, H3Disabled, c.H3Res)
	assert.True(t, c.StopOnError)

	t.Setenv("H3_RES", "0")
	assert.Equal(t, 0, FromEnv().H3Res)
	t.Setenv("H3_RES", "-3")
	assert.Equal(t, H3Disabled, FromEnv().H3Res)
}
