package geo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "travelmap/pkg/errors"
)

func TestDefaultTablesLoad(t *testing.T) {
	tables, err := Default()
	require.NoError(t, err)
	assert.NotEmpty(t, tables.Version())
	assert.Contains(t, tables.Countries(), "Bolivia")
	assert.True(t, tables.IsCountry("Netherlands"))
	assert.False(t, tables.IsCountry("Holland"))
}

func TestNormalizeCountryIdempotentOnCanonical(t *testing.T) {
	tables := MustDefault()
	for _, c := range tables.Countries() {
		assert.Equal(t, c, tables.NormalizeCountry(c), "canonical %q", c)
	}
}

func TestNormalizeCountryAliasClosure(t *testing.T) {
	tables := MustDefault()
	for alias, canonical := range tables.Aliases() {
		got := tables.NormalizeCountry(alias)
		assert.Equal(t, canonical, got, "alias %q", alias)
		assert.Equal(t, got, tables.NormalizeCountry(got), "fixed point for %q", alias)
		assert.True(t, tables.IsCountry(got))
	}
}

func TestNormalizeCountry(t *testing.T) {
	tables := MustDefault()
	tests := []struct {
		in   string
		want string
	}{
		{"Holland", "Netherlands"},
		{"holland", "Netherlands"},
		{"Korean", "South Korea"},
		{"korean", "South Korea"},
		{"Korea", "South Korea"},
		{"USA", "United States"},
		{"UK", "United Kingdom"},
		{"Swiss", "Switzerland"},
		{"NZ", "New Zealand"},
		{"Taiwán", "Taiwan"},
		{"taiwan", "Taiwan"},
		{"PERU", "Peru"},
		{" Japan ", "Japan"},
		{"Atlantis", "Atlantis"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, tables.NormalizeCountry(tt.in))
		})
	}
}

func TestCityToCountryExactMatch(t *testing.T) {
	tables := MustDefault()

	c, ok := tables.CityToCountry("Kapailai")
	require.True(t, ok)
	assert.Equal(t, "Malaysia", c)

	c, ok = tables.CityToCountry("Amsterdam")
	require.True(t, ok)
	assert.Equal(t, "Netherlands", c)

	_, ok = tables.CityToCountry("kapailai")
	assert.False(t, ok, "lookup is exact")
	_, ok = tables.CityToCountry("Kapai")
	assert.False(t, ok, "lookup is not substring")
}

func TestCountryCentroid(t *testing.T) {
	tables := MustDefault()

	c, ok := tables.CountryCentroid("Bolivia")
	require.True(t, ok)
	assert.Equal(t, Coordinates{Lat: -16.2902, Lng: -63.5887}, c)

	_, ok = tables.CountryCentroid("Holland")
	assert.False(t, ok, "centroids are keyed by canonical name only")

	_, ok = tables.CountryCentroid("Chile")
	assert.False(t, ok)
}

func TestCityCoordinatesAndPlaces(t *testing.T) {
	tables := MustDefault()

	c, ok := tables.CityCoordinates("Taipei")
	require.True(t, ok)
	assert.InDelta(t, 25.0330, c.Lat, 1e-9)

	p, ok := tables.LookupPlace("東京")
	require.True(t, ok)
	assert.Equal(t, Place{City: "Tokyo", Country: "Japan"}, p)

	p, ok = tables.LookupPlace("bali")
	require.True(t, ok)
	assert.Equal(t, "Denpasar", p.City)
}

func TestMissingCentroids(t *testing.T) {
	tables := MustDefault()
	missing := tables.MissingCentroids()
	assert.Contains(t, missing, "Chile")
	assert.NotContains(t, missing, "Japan")
	assert.IsIncreasing(t, missing)
}

func TestValidateRejectsBrokenData(t *testing.T) {
	tests := []struct {
		name    string
		data    Data
		wantMsg string
	}{
		{
			name:    "no countries",
			data:    Data{},
			wantMsg: "no countries defined",
		},
		{
			name: "alias to unknown country",
			data: Data{
				Countries: []string{"Japan"},
				Aliases:   map[string]string{"Nippon": "Nihon"},
			},
			wantMsg: `alias "Nippon" maps to unknown country "Nihon"`,
		},
		{
			name: "alias shadows canonical",
			data: Data{
				Countries: []string{"Japan", "Peru"},
				Aliases:   map[string]string{"Japan": "Peru"},
			},
			wantMsg: `alias "Japan" shadows a canonical country`,
		},
		{
			name: "city to non canonical country",
			data: Data{
				Countries: []string{"Netherlands"},
				Cities:    map[string]string{"Amsterdam": "Holland"},
			},
			wantMsg: `city "Amsterdam" maps to unknown country "Holland"`,
		},
		{
			name: "centroid out of range",
			data: Data{
				Countries: []string{"Japan"},
				Centroids: map[string]Coordinates{"Japan": {Lat: 136.2, Lng: 38.2}},
			},
			wantMsg: "out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.data)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrorTypeReferenceData))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	override := `
version: "local"
countries: [Chile]
centroids:
  Chile: {lat: -35.6751, lng: -71.5430}
cities:
  Santiago: Chile
`
	require.NoError(t, os.WriteFile(path, []byte(override), 0644))

	tables, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "local", tables.Version())

	c, ok := tables.CountryCentroid("Chile")
	require.True(t, ok)
	assert.InDelta(t, -35.6751, c.Lat, 1e-9)

	country, ok := tables.CityToCountry("Santiago")
	require.True(t, ok)
	assert.Equal(t, "Chile", country)

	// base data survives the overlay
	assert.True(t, tables.IsCountry("Japan"))
	assert.Len(t, tables.Countries(), len(MustDefault().Countries()))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeReferenceData))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cities: [not, a, map"), 0644))
	_, err = Load(path)
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeReferenceData))

	path = filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aliases:\n  Nippon: Nihon\n"), 0644))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nippon")
}
