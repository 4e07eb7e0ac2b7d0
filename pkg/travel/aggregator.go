package travel

import (
	"sort"
	"time"

	"travelmap/pkg/geo"
	"travelmap/pkg/instagram"
	"travelmap/pkg/location"
	"travelmap/pkg/logger"
	"travelmap/pkg/patterns"
)

// MediaLocationRule names locations taken from the post's own location field
const MediaLocationRule = "media_location"

// Aggregator turns fetched media into the travel-data document
type Aggregator struct {
	extractor location.LocationExtractor
	tables    *geo.Tables
	logger    logger.Logger
	now       func() time.Time
}

// AggregatorOption configures an Aggregator
type AggregatorOption func(*Aggregator)

// WithAggregatorLogger sets the aggregator logger
func WithAggregatorLogger(log logger.Logger) AggregatorOption {
	return func(a *Aggregator) {
		if log != nil {
			a.logger = log
		}
	}
}

// WithClock overrides the time source used for lastUpdated
func WithClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates an aggregator. extractor handles captions; tables
// normalize explicit media locations and supply coordinates.
func NewAggregator(extractor location.LocationExtractor, tables *geo.Tables, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		extractor: extractor,
		tables:    tables,
		logger:    logger.GetLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Tables returns the reference tables used for normalization
func (a *Aggregator) Tables() *geo.Tables { return a.tables }

// Result is the output of an aggregation run
type Result struct {
	Data      *Data
	Unlocated []instagram.Media
}

// Locate resolves the location of one post. An explicit media location
// wins when it names a country or a known city; otherwise the caption is
// extracted. It is safe for concurrent use.
func (a *Aggregator) Locate(m instagram.Media) *location.Location {
	if loc := a.fromMediaLocation(m.Location); loc != nil {
		return loc
	}
	return a.extractor.Extract(m.CaptionText())
}

func (a *Aggregator) fromMediaLocation(ml *instagram.MediaLocation) *location.Location {
	if !ml.HasPlace() {
		return nil
	}

	// an unrecognized country is ignored so the city and name can resolve it
	country := ""
	if ml.Country != "" {
		if n := a.tables.NormalizeCountry(ml.Country); a.tables.IsCountry(n) {
			country = n
		}
	}
	if country == "" && ml.City != "" {
		country, _ = a.tables.CityToCountry(ml.City)
	}
	if country == "" && ml.Name != "" {
		if named := a.extractor.Extract(ml.Name); named != nil {
			named.Stage = patterns.StageExternal
			named.Rule = MediaLocationRule
			return named
		}
	}
	if country == "" {
		return nil
	}

	loc := &location.Location{City: ml.City, Country: country, Stage: patterns.StageExternal, Rule: MediaLocationRule}
	if ml.Latitude != nil && ml.Longitude != nil {
		loc.Coordinates = &geo.Coordinates{Lat: *ml.Latitude, Lng: *ml.Longitude}
	} else if c, ok := a.tables.CityCoordinates(ml.City); ok && ml.City != "" {
		loc.Coordinates = &c
	}
	if c, ok := a.tables.CountryCentroid(country); ok {
		loc.CountryCoordinates = &c
	}
	return loc
}

// Aggregate locates every post sequentially and builds the document
func (a *Aggregator) Aggregate(media []instagram.Media) *Result {
	locs := make([]*location.Location, len(media))
	for i, m := range media {
		locs[i] = a.Locate(m)
	}
	return a.Build(media, locs)
}

// Build assembles the document from media and their already resolved
// locations. locs[i] belongs to media[i]; records without a country are
// dropped.
func (a *Aggregator) Build(media []instagram.Media, locs []*location.Location) *Result {
	posts := make([]Post, 0, len(media))
	var unlocated []instagram.Media

	for i, m := range media {
		var loc *location.Location
		if i < len(locs) {
			loc = locs[i]
		}
		if loc == nil || loc.Country == "" {
			unlocated = append(unlocated, m)
			continue
		}
		posts = append(posts, NewPost(m, loc))
	}

	data := a.group(posts, len(media), nil)
	a.reportMissingCentroids(data)

	a.logger.InfoWithFields("aggregated travel data", map[string]interface{}{
		"countries":           len(data.Countries),
		"cities":              len(data.Cities),
		"posts_with_location": data.PostsWithLocation,
		"total_posts":         data.TotalPosts,
	})
	return &Result{Data: data, Unlocated: unlocated}
}

// group builds a document from located posts. previous supplies country
// coordinates for countries the tables have no centroid for.
func (a *Aggregator) group(posts []Post, totalPosts int, previous map[string]*Country) *Data {
	data := &Data{
		Countries:   make(map[string]*Country),
		Posts:       posts,
		LastUpdated: a.now().UTC(),
		TotalPosts:  totalPosts,
	}

	allCities := newOrderedSet()
	countryCities := make(map[string]*orderedSet)

	for _, post := range posts {
		loc := post.Location
		if loc == nil || loc.Country == "" {
			continue
		}
		data.PostsWithLocation++

		entry, ok := data.Countries[loc.Country]
		if !ok {
			entry = &Country{Name: loc.Country, Posts: []Post{}}
			entry.Coordinates = a.countryCoordinates(loc, previous)
			data.Countries[loc.Country] = entry
			countryCities[loc.Country] = newOrderedSet()
		}
		entry.Posts = append(entry.Posts, post)
		if loc.City != "" {
			countryCities[loc.Country].add(loc.City)
			allCities.add(loc.City)
		}
	}

	for name, entry := range data.Countries {
		entry.Cities = countryCities[name].items
	}
	data.Cities = allCities.items
	if data.Posts == nil {
		data.Posts = []Post{}
	}
	return data
}

func (a *Aggregator) countryCoordinates(loc *location.Location, previous map[string]*Country) *geo.Coordinates {
	if c, ok := a.tables.CountryCentroid(loc.Country); ok {
		return &c
	}
	if loc.CountryCoordinates != nil {
		c := *loc.CountryCoordinates
		return &c
	}
	if prev, ok := previous[loc.Country]; ok && prev.Coordinates != nil {
		c := *prev.Coordinates
		return &c
	}
	return nil
}

func (a *Aggregator) reportMissingCentroids(data *Data) {
	names := make([]string, 0, len(data.Countries))
	for name, entry := range data.Countries {
		if entry.Coordinates == nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		logger.LogMissingCentroid(name, len(data.Countries[name].Posts))
	}
}
