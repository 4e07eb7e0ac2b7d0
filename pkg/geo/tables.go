package geo

import (
	_ "embed"
	stderrors "errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
	apperrors "travelmap/pkg/errors"
)

//go:embed data/reference.yaml
var defaultData []byte

// Coordinates is a latitude/longitude pair
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Place is a recognised place name resolved to a display city and country
type Place struct {
	City    string `json:"city" yaml:"city"`
	Country string `json:"country" yaml:"country"`
}

// Data is the on-disk shape of the reference tables
type Data struct {
	Version         string                 `yaml:"version"`
	Countries       []string               `yaml:"countries"`
	Aliases         map[string]string      `yaml:"aliases"`
	Cities          map[string]string      `yaml:"cities"`
	Centroids       map[string]Coordinates `yaml:"centroids"`
	CityCoordinates map[string]Coordinates `yaml:"city_coordinates"`
	Places          map[string]Place       `yaml:"places"`
}

// Tables holds the immutable lookup tables. A *Tables is safe for
// concurrent use; nothing mutates it after New returns.
type Tables struct {
	version   string
	countries []string
	canonical map[string]struct{}
	// folded lookups: case-folded key to canonical name
	canonicalFold map[string]string
	aliases       map[string]string
	aliasFold     map[string]string
	cities        map[string]string
	centroids     map[string]Coordinates
	cityCoords    map[string]Coordinates
	places        map[string]Place
}

// fold case-folds s. A Caser is stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Parse decodes reference data from YAML
func Parse(raw []byte) (Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return Data{}, apperrors.Wrap(apperrors.ErrorTypeReferenceData, err, "failed to parse reference tables")
	}
	return d, nil
}

// New validates d and builds the lookup tables
func New(d Data) (*Tables, error) {
	if err := Validate(d); err != nil {
		return nil, err
	}

	t := &Tables{
		version:       d.Version,
		canonical:     make(map[string]struct{}, len(d.Countries)),
		canonicalFold: make(map[string]string, len(d.Countries)),
		aliases:       make(map[string]string, len(d.Aliases)),
		aliasFold:     make(map[string]string, len(d.Aliases)),
		cities:        make(map[string]string, len(d.Cities)),
		centroids:     make(map[string]Coordinates, len(d.Centroids)),
		cityCoords:    make(map[string]Coordinates, len(d.CityCoordinates)),
		places:        make(map[string]Place, len(d.Places)),
	}

	for _, c := range d.Countries {
		if _, dup := t.canonical[c]; dup {
			continue
		}
		t.canonical[c] = struct{}{}
		t.canonicalFold[fold(c)] = c
		t.countries = append(t.countries, c)
	}
	for alias, target := range d.Aliases {
		t.aliases[alias] = target
		t.aliasFold[fold(alias)] = target
	}
	for city, country := range d.Cities {
		t.cities[city] = country
	}
	for country, c := range d.Centroids {
		t.centroids[country] = c
	}
	for city, c := range d.CityCoordinates {
		t.cityCoords[city] = c
	}
	for name, p := range d.Places {
		t.places[fold(name)] = p
	}

	return t, nil
}

// Validate checks that every table points at a canonical country and that
// no alias shadows a canonical name. All problems are reported together.
func Validate(d Data) error {
	var errs []error

	canonical := make(map[string]bool, len(d.Countries))
	for _, c := range d.Countries {
		if strings.TrimSpace(c) == "" {
			errs = append(errs, fmt.Errorf("empty country name"))
			continue
		}
		canonical[c] = true
	}
	if len(canonical) == 0 {
		errs = append(errs, fmt.Errorf("no countries defined"))
	}

	for alias, target := range d.Aliases {
		if canonical[alias] {
			errs = append(errs, fmt.Errorf("alias %q shadows a canonical country", alias))
		}
		if !canonical[target] {
			errs = append(errs, fmt.Errorf("alias %q maps to unknown country %q", alias, target))
		}
	}
	for city, country := range d.Cities {
		if !canonical[country] {
			errs = append(errs, fmt.Errorf("city %q maps to unknown country %q", city, country))
		}
	}
	for country := range d.Centroids {
		if !canonical[country] {
			errs = append(errs, fmt.Errorf("centroid for unknown country %q", country))
		}
	}
	for name, p := range d.Places {
		if !canonical[p.Country] {
			errs = append(errs, fmt.Errorf("place %q maps to unknown country %q", name, p.Country))
		}
	}
	for name, c := range d.Centroids {
		if err := checkRange(c); err != nil {
			errs = append(errs, fmt.Errorf("centroid %q: %w", name, err))
		}
	}
	for name, c := range d.CityCoordinates {
		if err := checkRange(c); err != nil {
			errs = append(errs, fmt.Errorf("city coordinate %q: %w", name, err))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return apperrors.Wrap(apperrors.ErrorTypeReferenceData, stderrors.Join(errs...), "invalid reference tables")
}

func checkRange(c Coordinates) error {
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("out of range (%v, %v)", c.Lat, c.Lng)
	}
	return nil
}

// Merge overlays override onto base. Override entries replace base entries
// with the same key; countries are appended.
func Merge(base, override Data) Data {
	out := Data{
		Version:         base.Version,
		Countries:       append([]string(nil), base.Countries...),
		Aliases:         mergeMap(base.Aliases, override.Aliases),
		Cities:          mergeMap(base.Cities, override.Cities),
		Centroids:       mergeMap(base.Centroids, override.Centroids),
		CityCoordinates: mergeMap(base.CityCoordinates, override.CityCoordinates),
		Places:          mergeMap(base.Places, override.Places),
	}
	if override.Version != "" {
		out.Version = override.Version
	}
	out.Countries = append(out.Countries, override.Countries...)
	return out
}

func mergeMap[V any](base, override map[string]V) map[string]V {
	out := make(map[string]V, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
	defaultErr    error
)

// Default returns the tables built from the embedded data. The result is
// shared process-wide.
func Default() (*Tables, error) {
	defaultOnce.Do(func() {
		d, err := Parse(defaultData)
		if err != nil {
			defaultErr = err
			return
		}
		defaultTables, defaultErr = New(d)
	})
	return defaultTables, defaultErr
}

// MustDefault is Default for callers that treat broken embedded data as a
// programming error.
func MustDefault() *Tables {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Load builds tables from the embedded data overlaid with the YAML file at
// path. An empty path returns Default.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeReferenceData, err, "failed to read reference tables %s", path)
	}
	override, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	base, err := Parse(defaultData)
	if err != nil {
		return nil, err
	}
	return New(Merge(base, override))
}

// Version identifies the data the tables were built from
func (t *Tables) Version() string { return t.version }

// Countries returns the canonical country names in declaration order
func (t *Tables) Countries() []string {
	return append([]string(nil), t.countries...)
}

// Aliases returns a copy of the alias table
func (t *Tables) Aliases() map[string]string {
	return mergeMap(t.aliases, nil)
}

// Cities returns a copy of the city to country table
func (t *Tables) Cities() map[string]string {
	return mergeMap(t.cities, nil)
}

// IsCountry reports whether name is a canonical country name
func (t *Tables) IsCountry(name string) bool {
	_, ok := t.canonical[name]
	return ok
}

// NormalizeCountry maps an alias to its canonical country. Aliases and
// canonical names match case-insensitively; anything else is returned
// unchanged.
func (t *Tables) NormalizeCountry(raw string) string {
	name := strings.TrimSpace(raw)
	if _, ok := t.canonical[name]; ok {
		return name
	}
	if c, ok := t.aliases[name]; ok {
		return c
	}
	folded := fold(name)
	if c, ok := t.aliasFold[folded]; ok {
		return c
	}
	if c, ok := t.canonicalFold[folded]; ok {
		return c
	}
	return raw
}

// CityToCountry returns the country for an exact city name
func (t *Tables) CityToCountry(city string) (string, bool) {
	c, ok := t.cities[city]
	return c, ok
}

// CountryCentroid returns the centroid for a canonical country name
func (t *Tables) CountryCentroid(country string) (Coordinates, bool) {
	c, ok := t.centroids[country]
	return c, ok
}

// CityCoordinates returns the coordinates for an exact city name
func (t *Tables) CityCoordinates(city string) (Coordinates, bool) {
	c, ok := t.cityCoords[city]
	return c, ok
}

// LookupPlace resolves a place name case-insensitively
func (t *Tables) LookupPlace(name string) (Place, bool) {
	p, ok := t.places[fold(strings.TrimSpace(name))]
	return p, ok
}

// MissingCentroids lists canonical countries without a centroid, sorted
func (t *Tables) MissingCentroids() []string {
	var missing []string
	for _, c := range t.countries {
		if _, ok := t.centroids[c]; !ok {
			missing = append(missing, c)
		}
	}
	sort.Strings(missing)
	return missing
}
