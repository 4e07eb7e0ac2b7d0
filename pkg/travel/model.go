package travel

import (
	"time"

	"travelmap/pkg/geo"
	"travelmap/pkg/instagram"
	"travelmap/pkg/location"
)

// Post is a located Instagram post as stored in the travel-data document
type Post struct {
	ID        string             `json:"id"`
	Caption   string             `json:"caption"`
	MediaURL  string             `json:"mediaUrl"`
	Permalink string             `json:"permalink"`
	Timestamp string             `json:"timestamp"`
	Location  *location.Location `json:"location"`
	MediaType string             `json:"mediaType"`
}

// NewPost converts a media item and its resolved location into a Post
func NewPost(m instagram.Media, loc *location.Location) Post {
	return Post{
		ID:        m.ID,
		Caption:   m.CaptionText(),
		MediaURL:  m.MediaURL,
		Permalink: m.Permalink,
		Timestamp: m.Timestamp,
		Location:  loc,
		MediaType: m.MediaType,
	}
}

// Country groups the posts of one country
type Country struct {
	Name        string           `json:"name"`
	Posts       []Post           `json:"posts"`
	Cities      []string         `json:"cities"`
	Coordinates *geo.Coordinates `json:"coordinates"`
}

// Data is the travel-data document consumed by the map
type Data struct {
	Countries         map[string]*Country `json:"countries"`
	Cities            []string            `json:"cities"`
	Posts             []Post              `json:"posts"`
	LastUpdated       time.Time           `json:"lastUpdated"`
	TotalPosts        int                 `json:"totalPosts"`
	PostsWithLocation int                 `json:"postsWithLocation"`
}

// Summary is the small document shown in the map header
type Summary struct {
	LastUpdated       time.Time `json:"lastUpdated"`
	TotalCountries    int       `json:"totalCountries"`
	TotalCities       int       `json:"totalCities"`
	TotalPosts        int       `json:"totalPosts"`
	PostsWithLocation int       `json:"postsWithLocation"`
	Username          string    `json:"username"`
	MediaCount        int       `json:"mediaCount"`
}

// NewSummary summarises d for the given profile. profile may be nil.
func NewSummary(d *Data, profile *instagram.Profile) Summary {
	s := Summary{
		LastUpdated:       d.LastUpdated,
		TotalCountries:    len(d.Countries),
		TotalCities:       len(d.Cities),
		TotalPosts:        d.TotalPosts,
		PostsWithLocation: d.PostsWithLocation,
	}
	if profile != nil {
		s.Username = profile.Username
		s.MediaCount = profile.MediaCount
	}
	return s
}

// orderedSet keeps strings in first-insertion order without duplicates
type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func newOrderedSet(items ...string) *orderedSet {
	s := &orderedSet{items: []string{}, seen: make(map[string]struct{})}
	for _, item := range items {
		s.add(item)
	}
	return s
}

func (s *orderedSet) add(item string) {
	if item == "" {
		return
	}
	if _, ok := s.seen[item]; ok {
		return
	}
	s.seen[item] = struct{}{}
	s.items = append(s.items, item)
}
