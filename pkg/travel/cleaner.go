package travel

import (
	"sort"

	"travelmap/pkg/location"
	"travelmap/pkg/logger"
)

// DefaultCleanupMapping repairs country keys written by older extractors
var DefaultCleanupMapping = map[string]string{
	"taiwan":     "Taiwan",
	"peru":       "Peru",
	"belgium":    "Belgium",
	"US":         "United States",
	"Philippine": "Philippines",
	"Macus":      "Macau",
	"xico":       "Mexico",
}

// DefaultRegions folds sub-national regions into their country
var DefaultRegions = map[string]string{
	"Toscana":  "Italy",
	"Provence": "France",
}

// DefaultInvalidKeys are country keys that never name a place
var DefaultInvalidKeys = []string{"n", "A", "LA", "Life", "Tomorrowland"}

// CleanOptions controls a cleaning pass
type CleanOptions struct {
	// Reextract runs the extractor over every caption again and moves
	// posts whose caption now resolves to a different place.
	Reextract bool
}

// CleanReport describes what a cleaning pass changed
type CleanReport struct {
	CountriesBefore   int               `json:"countriesBefore"`
	CountriesAfter    int               `json:"countriesAfter"`
	Merged            map[string]string `json:"merged"`
	Removed           map[string]int    `json:"removed"`
	DuplicatesRemoved int               `json:"duplicatesRemoved"`
	Reassigned        int               `json:"reassigned"`
}

// Changed reports whether the pass modified anything
func (r *CleanReport) Changed() bool {
	return len(r.Merged) > 0 || len(r.Removed) > 0 || r.DuplicatesRemoved > 0 || r.Reassigned > 0
}

// Cleaner repairs an existing travel-data document
type Cleaner struct {
	Mapping map[string]string
	Regions map[string]string
	Invalid map[string]struct{}

	agg    *Aggregator
	logger logger.Logger
}

// NewCleaner creates a cleaner that normalizes keys through the
// aggregator's tables and re-extracts with its extractor
func NewCleaner(agg *Aggregator) *Cleaner {
	invalid := make(map[string]struct{}, len(DefaultInvalidKeys))
	for _, key := range DefaultInvalidKeys {
		invalid[key] = struct{}{}
	}
	return &Cleaner{
		Mapping: DefaultCleanupMapping,
		Regions: DefaultRegions,
		Invalid: invalid,
		agg:     agg,
		logger:  agg.logger,
	}
}

// ResolveKey returns the country a key should be filed under. ok is false
// for keys that must be deleted. Unknown keys are kept as they are.
func (c *Cleaner) ResolveKey(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	if _, bad := c.Invalid[key]; bad {
		return "", false
	}
	if target, found := c.Mapping[key]; found {
		return target, true
	}
	if target, found := c.Regions[key]; found {
		return target, true
	}
	return c.agg.tables.NormalizeCountry(key), true
}

// Clean rebuilds d from its unique posts. Each post is filed under its own
// location country when it has one, else under the key it was found in.
// d is not modified.
func (c *Cleaner) Clean(d *Data, opts CleanOptions) (*Data, *CleanReport) {
	report := &CleanReport{
		CountriesBefore: len(d.Countries),
		Merged:          make(map[string]string),
		Removed:         make(map[string]int),
	}

	keys := make([]string, 0, len(d.Countries))
	for key := range d.Countries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	type filed struct {
		post Post
		key  string
	}
	var listedPosts []filed
	listedKey := make(map[string]string)
	for _, key := range keys {
		if target, ok := c.ResolveKey(key); ok && target != key {
			report.Merged[key] = target
		}
		for _, post := range d.Countries[key].Posts {
			if id := postKey(post); id != "" {
				if _, dup := listedKey[id]; dup {
					report.DuplicatesRemoved++
				} else {
					listedKey[id] = key
				}
			}
			listedPosts = append(listedPosts, filed{post: post, key: key})
		}
	}

	// The flat post list keeps its order; country lists only add posts it lacks
	candidates := make([]filed, 0, len(d.Posts)+len(listedPosts))
	for _, post := range d.Posts {
		candidates = append(candidates, filed{post: post, key: listedKey[postKey(post)]})
	}
	candidates = append(candidates, listedPosts...)

	seen := make(map[string]struct{})
	posts := make([]Post, 0, len(candidates))
	for _, cand := range candidates {
		if id := postKey(cand.post); id != "" {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
		}

		post := cand.post
		raw := cand.key
		if post.Location != nil && post.Location.Country != "" {
			raw = post.Location.Country
		}

		if opts.Reextract {
			if loc := c.agg.extractor.Extract(post.Caption); loc != nil {
				if post.Location == nil || loc.Country != c.normalized(raw) || loc.City != post.Location.City {
					report.Reassigned++
				}
				post.Location = loc
				raw = loc.Country
			}
		}

		if raw == "" {
			continue
		}
		country, ok := c.ResolveKey(raw)
		if !ok {
			report.Removed[raw]++
			continue
		}
		post.Location = c.relocate(post.Location, country)
		posts = append(posts, post)
	}

	total := d.TotalPosts
	if total < len(posts) {
		total = len(posts)
	}
	cleaned := c.agg.group(posts, total, d.Countries)
	report.CountriesAfter = len(cleaned.Countries)

	logger.LogMetrics("clean", map[string]interface{}{
		"countries_before":   report.CountriesBefore,
		"countries_after":    report.CountriesAfter,
		"merged":             len(report.Merged),
		"removed":            len(report.Removed),
		"duplicates_removed": report.DuplicatesRemoved,
		"reassigned":         report.Reassigned,
	})
	return cleaned, report
}

func (c *Cleaner) normalized(raw string) string {
	country, _ := c.ResolveKey(raw)
	return country
}

// relocate returns a copy of loc filed under country, with the country
// centroid filled in from the tables when known
func (c *Cleaner) relocate(loc *location.Location, country string) *location.Location {
	var out *location.Location
	if loc == nil {
		out = &location.Location{}
	} else {
		out = loc.Clone()
	}
	out.Country = country
	if cc, ok := c.agg.tables.CountryCentroid(country); ok {
		out.CountryCoordinates = &cc
	}
	if out.Coordinates == nil && out.City != "" {
		if cc, ok := c.agg.tables.CityCoordinates(out.City); ok {
			out.Coordinates = &cc
		}
	}
	return out
}

func postKey(p Post) string {
	if p.ID != "" {
		return p.ID
	}
	return p.Permalink
}
