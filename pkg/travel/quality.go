package travel

import (
	"sort"

	"travelmap/pkg/geo"
	"travelmap/pkg/instagram"
)

// CountryStat is one row of the quality report
type CountryStat struct {
	Name           string `json:"name"`
	Posts          int    `json:"posts"`
	Cities         int    `json:"cities"`
	HasCoordinates bool   `json:"hasCoordinates"`
	Canonical      bool   `json:"canonical"`
}

// QualityReport summarises how complete a travel-data document is
type QualityReport struct {
	Countries          []CountryStat `json:"countries"`
	TotalPosts         int           `json:"totalPosts"`
	PostsWithLocation  int           `json:"postsWithLocation"`
	Coverage           float64       `json:"coverage"`
	MissingCoordinates []string      `json:"missingCoordinates"`
	TableGaps          []string      `json:"tableGaps"`
	NonCanonicalKeys   []string      `json:"nonCanonicalKeys"`
	UnlocatedPosts     []string      `json:"unlocatedPosts"`
}

// Assess builds the quality report for d. unlocated lists media that were
// fetched but never placed; it may be nil.
func Assess(d *Data, tables *geo.Tables, unlocated []instagram.Media) *QualityReport {
	r := &QualityReport{
		TotalPosts:         d.TotalPosts,
		PostsWithLocation:  d.PostsWithLocation,
		Countries:          make([]CountryStat, 0, len(d.Countries)),
		MissingCoordinates: []string{},
		NonCanonicalKeys:   []string{},
		UnlocatedPosts:     []string{},
		TableGaps:          tables.MissingCentroids(),
	}
	if r.TableGaps == nil {
		r.TableGaps = []string{}
	}
	if d.TotalPosts > 0 {
		r.Coverage = float64(d.PostsWithLocation) / float64(d.TotalPosts)
	}

	for name, entry := range d.Countries {
		stat := CountryStat{
			Name:           name,
			Posts:          len(entry.Posts),
			Cities:         len(entry.Cities),
			HasCoordinates: entry.Coordinates != nil,
			Canonical:      tables.IsCountry(name),
		}
		r.Countries = append(r.Countries, stat)
		if !stat.HasCoordinates {
			r.MissingCoordinates = append(r.MissingCoordinates, name)
		}
		if !stat.Canonical {
			r.NonCanonicalKeys = append(r.NonCanonicalKeys, name)
		}
	}
	sort.Slice(r.Countries, func(i, j int) bool {
		if r.Countries[i].Posts != r.Countries[j].Posts {
			return r.Countries[i].Posts > r.Countries[j].Posts
		}
		return r.Countries[i].Name < r.Countries[j].Name
	})
	sort.Strings(r.MissingCoordinates)
	sort.Strings(r.NonCanonicalKeys)

	for _, post := range d.Posts {
		if post.Location == nil || post.Location.Country == "" {
			r.UnlocatedPosts = append(r.UnlocatedPosts, post.ID)
		}
	}
	for _, m := range unlocated {
		r.UnlocatedPosts = append(r.UnlocatedPosts, m.ID)
	}
	return r
}
