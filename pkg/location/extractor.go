package location

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"travelmap/pkg/geo"
	"travelmap/pkg/logger"
	"travelmap/pkg/patterns"
)

// Location is the result of extracting a caption. Country is always set on
// a returned Location; "no location" is a nil *Location.
type Location struct {
	City               string           `json:"city"`
	Country            string           `json:"country"`
	Coordinates        *geo.Coordinates `json:"coordinates"`
	CountryCoordinates *geo.Coordinates `json:"countryCoordinates"`

	// Stage and Rule record which rule produced the result
	Stage patterns.Stage `json:"-"`
	Rule  string         `json:"-"`
}

// Clone returns a deep copy of l
func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	out := *l
	if l.Coordinates != nil {
		c := *l.Coordinates
		out.Coordinates = &c
	}
	if l.CountryCoordinates != nil {
		c := *l.CountryCoordinates
		out.CountryCoordinates = &c
	}
	return &out
}

// LocationExtractor is anything that can turn a caption into a Location
type LocationExtractor interface {
	Extract(caption string) *Location
}

// Extractor walks the pattern catalog in priority order and resolves the
// first usable match against the reference tables. It holds no mutable
// state and is safe for concurrent use.
type Extractor struct {
	tables  *geo.Tables
	catalog *patterns.Catalog
	logger  logger.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithLogger sets the logger used for debug tracing of matched stages
func WithLogger(l logger.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// New creates an extractor over the given tables and catalog
func New(tables *geo.Tables, catalog *patterns.Catalog, opts ...Option) *Extractor {
	e := &Extractor{
		tables:  tables,
		catalog: catalog,
		logger:  logger.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewDefault builds an extractor over the embedded reference data
func NewDefault(opts ...Option) (*Extractor, error) {
	tables, err := geo.Default()
	if err != nil {
		return nil, err
	}
	catalog, err := patterns.New(tables)
	if err != nil {
		return nil, err
	}
	return New(tables, catalog, opts...), nil
}

// Tables returns the reference tables the extractor resolves against
func (e *Extractor) Tables() *geo.Tables { return e.tables }

// Catalog returns the rule catalog
func (e *Extractor) Catalog() *patterns.Catalog { return e.catalog }

// ExtractOptional is Extract for captions that may be absent
func (e *Extractor) ExtractOptional(caption *string) *Location {
	if caption == nil {
		return nil
	}
	return e.Extract(*caption)
}

// Extract returns the location named by the caption, or nil when there is
// none. It never fails.
func (e *Extractor) Extract(caption string) *Location {
	first, leading, ok := SplitLines(caption)
	if !ok {
		return nil
	}

	for _, stage := range patterns.Stages {
		for _, rule := range e.catalog.Stage(stage) {
			text := first
			if rule.Scope == patterns.ScopeLeadingLines {
				text = leading
			}
			groups, matched := rule.Match(text)
			if !matched {
				continue
			}
			loc := e.resolve(rule, groups)
			if loc == nil {
				continue
			}
			loc.Stage = stage
			loc.Rule = rule.Name
			e.enrich(loc)

			e.logger.DebugWithFields("Location extracted", map[string]interface{}{
				"stage":   stage.String(),
				"rule":    rule.Name,
				"country": loc.Country,
				"city":    loc.City,
			})
			return loc
		}
	}
	return nil
}

// SplitLines normalizes the caption to NFC and returns its first
// non-blank line and the first two non-blank lines joined by "\n".
// ok is false when the caption has no content.
func SplitLines(caption string) (first, leading string, ok bool) {
	if strings.TrimSpace(caption) == "" {
		return "", "", false
	}
	text := norm.NFC.String(caption)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == 2 {
			break
		}
	}
	if len(lines) == 0 {
		return "", "", false
	}
	return lines[0], strings.Join(lines, "\n"), true
}

func (e *Extractor) resolve(rule patterns.Rule, groups []string) *Location {
	switch rule.Tag {
	case patterns.TagExplicit:
		return e.resolveFreeText(groups[1])
	case patterns.TagBullet:
		return e.resolveBullet(groups[1], groups[2])
	case patterns.TagCityFirst:
		return e.resolveCityToken(groups[1])
	case patterns.TagCountry:
		return e.resolveCountry(groups[1])
	case patterns.TagCityCountry:
		return e.resolveCityCountry(groups[1], groups[2])
	case patterns.TagPlace:
		return e.resolvePlace(rule, groups)
	default:
		return nil
	}
}

// resolveFreeText handles marker text: "City, Country" or a bare name
func (e *Extractor) resolveFreeText(text string) *Location {
	text = trimDecoration(text)
	if text == "" {
		return nil
	}

	if strings.Contains(text, ",") {
		parts := strings.Split(text, ",")
		city := trimDecoration(parts[0])
		tail := trimDecoration(parts[len(parts)-1])
		if loc := e.resolveCityCountry(city, tail); loc != nil {
			return loc
		}
		if country, ok := e.tables.CityToCountry(city); ok {
			return &Location{City: city, Country: country}
		}
		return nil
	}

	if country := e.tables.NormalizeCountry(text); e.tables.IsCountry(country) {
		return &Location{Country: country}
	}
	if country, ok := e.tables.CityToCountry(text); ok {
		return &Location{City: text, Country: country}
	}
	if place, ok := e.tables.LookupPlace(text); ok {
		return &Location{City: place.City, Country: place.Country}
	}
	return nil
}

// resolveBullet handles "Country • City", falling back to "City • Detail"
// when the left segment is a known city
func (e *Extractor) resolveBullet(left, right string) *Location {
	if i := strings.IndexAny(right, "#@"); i >= 0 {
		right = right[:i]
	}
	right = trimDecoration(right)
	if country := e.tables.NormalizeCountry(left); e.tables.IsCountry(country) {
		return &Location{City: right, Country: country}
	}
	if country, ok := e.tables.CityToCountry(left); ok {
		return &Location{City: left, Country: country}
	}
	return nil
}

// trimDecoration strips surrounding spaces and emoji, including flags,
// variation selectors and joiners
func trimDecoration(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsSymbol(r) ||
			r == '\u200d' || (r >= '\ufe00' && r <= '\ufe0f')
	})
}

// trailingPunct is stripped from a leading token before the city lookup
const trailingPunct = ",.!?:;"

func (e *Extractor) resolveCityToken(token string) *Location {
	token = strings.TrimRight(token, trailingPunct)
	if country, ok := e.tables.CityToCountry(token); ok {
		return &Location{City: token, Country: country}
	}
	return nil
}

func (e *Extractor) resolveCountry(name string) *Location {
	if country := e.tables.NormalizeCountry(name); e.tables.IsCountry(country) {
		return &Location{Country: country}
	}
	return nil
}

func (e *Extractor) resolveCityCountry(city, country string) *Location {
	country = e.tables.NormalizeCountry(country)
	if !e.tables.IsCountry(country) {
		return nil
	}
	return &Location{City: strings.TrimSpace(city), Country: country}
}

func (e *Extractor) resolvePlace(rule patterns.Rule, groups []string) *Location {
	text := strings.TrimSpace(groups[1])
	if text == "" {
		return nil
	}
	if place, ok := e.tables.LookupPlace(text); ok {
		return &Location{City: place.City, Country: place.Country}
	}
	if country := e.tables.NormalizeCountry(text); e.tables.IsCountry(country) {
		return &Location{Country: country}
	}
	if rule.Country == "" {
		return nil
	}
	return &Location{City: text, Country: rule.Country}
}

// enrich attaches coordinates. Missing entries leave the fields nil.
func (e *Extractor) enrich(loc *Location) {
	if c, ok := e.tables.CountryCentroid(loc.Country); ok {
		loc.CountryCoordinates = &c
	}
	if loc.City == "" {
		return
	}
	if c, ok := e.tables.CityCoordinates(loc.City); ok {
		loc.Coordinates = &c
	}
}
