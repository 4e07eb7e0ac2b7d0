package patterns

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"travelmap/pkg/geo"
)

// Stage is one step of the extraction cascade, in priority order
type Stage int

const (
	StageGPS Stage = iota
	StageBullet
	StageCityFirst
	StageCountryName
	StageLegacyFallback
	// StageExternal marks a location taken from outside the caption, such
	// as a post's own tagged place. It is never part of the cascade.
	StageExternal
)

// Stages lists every stage in priority order
var Stages = []Stage{StageGPS, StageBullet, StageCityFirst, StageCountryName, StageLegacyFallback}

func (s Stage) String() string {
	switch s {
	case StageGPS:
		return "gps"
	case StageBullet:
		return "bullet"
	case StageCityFirst:
		return "city_first"
	case StageCountryName:
		return "country_name"
	case StageLegacyFallback:
		return "legacy_fallback"
	case StageExternal:
		return "external"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Tag says how a rule's captured groups are interpreted
type Tag string

const (
	// TagExplicit captures free text after a marker ("📍", "Location:")
	TagExplicit Tag = "explicit"
	// TagBullet splits "Country • City" into two segments
	TagBullet Tag = "country_dot_city"
	// TagCityFirst captures the leading token
	TagCityFirst Tag = "city_first"
	// TagCountry captures a recognised country name or alias
	TagCountry Tag = "country"
	// TagCityCountry captures "City, Country"
	TagCityCountry Tag = "city_country"
	// TagPlace captures a known place literal
	TagPlace Tag = "place"
)

// Scope selects which caption text a rule reads
type Scope int

const (
	// ScopeFirstLine reads only the first line
	ScopeFirstLine Scope = iota
	// ScopeLeadingLines reads the first two lines joined by a newline
	ScopeLeadingLines
)

// Rule is a single tagged matcher
type Rule struct {
	Name  string
	Stage Stage
	Tag   Tag
	Scope Scope
	// Pattern finds the match. For split rules it is the separator.
	Pattern *regexp.Regexp
	// Split rules match when Pattern splits the text into exactly two
	// non-empty segments.
	Split bool
	// Country is attributed to place matches that are not in the place
	// table.
	Country string
}

// Match runs the rule against text. groups[0] is the whole match and the
// following entries are the captured groups (or the two split segments).
func (r Rule) Match(text string) ([]string, bool) {
	if r.Split {
		parts := r.Pattern.Split(text, -1)
		if len(parts) != 2 {
			return nil, false
		}
		left, right := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if left == "" || right == "" {
			return nil, false
		}
		return []string{strings.TrimSpace(text), left, right}, true
	}

	groups := r.Pattern.FindStringSubmatch(text)
	if groups == nil {
		return nil, false
	}
	return groups, true
}

// Catalog is the ordered, immutable set of rules
type Catalog struct {
	rules []Rule
}

// wordChar is what counts as part of a word for boundary checks. Non-Latin
// scripts are treated as separators so "Japan東京" still matches Japan.
const wordChar = `\p{Latin}\p{N}_`

const (
	leftBoundary  = `(?:^|[^` + wordChar + `])`
	rightBoundary = `(?:[^` + wordChar + `]|$)`
)

var acronym = regexp.MustCompile(`^[A-Z]{2,4}$`)

// CountryAlternation builds a regex alternation of every canonical country
// and alias, longest first. Acronyms such as UK or USA match case-sensitively
// so they do not fire on ordinary words like "us".
func CountryAlternation(t *geo.Tables) string {
	names := t.Countries()
	for alias := range t.Aliases() {
		names = append(names, alias)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	alts := make([]string, 0, len(names))
	for _, n := range names {
		quoted := regexp.QuoteMeta(n)
		if acronym.MatchString(n) {
			alts = append(alts, quoted)
		} else {
			alts = append(alts, "(?i:"+quoted+")")
		}
	}
	return strings.Join(alts, "|")
}

// bounded wraps a Latin alternation in word boundaries and captures it
func bounded(alternation string) string {
	return leftBoundary + "(" + alternation + ")" + rightBoundary
}

// New builds the catalog for the given reference tables
func New(t *geo.Tables) (*Catalog, error) {
	countries := CountryAlternation(t)

	specs := []struct {
		name    string
		stage   Stage
		tag     Tag
		scope   Scope
		expr    string
		split   bool
		country string
	}{
		{"gps_pin", StageGPS, TagExplicit, ScopeFirstLine, `📍\x{FE0F}?\s*([^•・\n\r#@]+)`, false, ""},

		{"bullet", StageBullet, TagBullet, ScopeFirstLine, `\s*[•・]\s*`, true, ""},

		{"leading_token", StageCityFirst, TagCityFirst, ScopeFirstLine, `^\s*(\S+)`, false, ""},

		{"country_name", StageCountryName, TagCountry, ScopeFirstLine, bounded(countries), false, ""},

		{"location_label", StageLegacyFallback, TagExplicit, ScopeLeadingLines, `(?i)Location:\s*([^\n\r#@]+)`, false, ""},
		{"location_label_zh", StageLegacyFallback, TagExplicit, ScopeLeadingLines, `地點[:：]\s*([^\n\r#@]+)`, false, ""},
		{"city_country", StageLegacyFallback, TagCityCountry, ScopeLeadingLines, `([^#@\n\r,]+),\s*(` + countries + `)` + rightBoundary, false, ""},
		{"country_anywhere", StageLegacyFallback, TagCountry, ScopeLeadingLines, bounded(countries), false, ""},
		{"mountain", StageLegacyFallback, TagPlace, ScopeLeadingLines, bounded(`(?i:(?:Everest|Annapurna|Manaslu)(?:\s*Base\s*Camp)?)`), false, "Nepal"},
		{"mountain_zh", StageLegacyFallback, TagPlace, ScopeLeadingLines, `(富士山|玉山|阿里山|聖母峰|安娜普納|馬納斯盧)(?:基地營)?`, false, ""},
		{"nepal_place", StageLegacyFallback, TagPlace, ScopeLeadingLines, bounded(`(?i:Kathmandu|Pokhara|Lukla|Namche)`), false, "Nepal"},
		{"nepal_place_zh", StageLegacyFallback, TagPlace, ScopeLeadingLines, `(加德滿都|博卡拉|盧卡拉|南崎)`, false, "Nepal"},
		{"known_city", StageLegacyFallback, TagPlace, ScopeLeadingLines, bounded(`(?i:New York|Hiroshima|Barcelona|Vancouver|Bangkok|Toronto|Taipei|London|Berlin|Sydney|Tokyo|Kyoto|Osaka|Paris|Seoul|Rome|Bali)`), false, ""},
		{"taiwan_city", StageLegacyFallback, TagPlace, ScopeLeadingLines, `(台北|新北|桃園|新竹|苗栗|台中|彰化|南投|雲林|嘉義|台南|高雄|屏東|宜蘭|花蓮|台東|澎湖|金門|馬祖)`, false, "Taiwan"},
		{"japan_city", StageLegacyFallback, TagPlace, ScopeLeadingLines, `(東京|京都|大阪|名古屋|神戶|橫濱|札幌|福岡|廣島|奈良)`, false, "Japan"},
	}

	c := &Catalog{rules: make([]Rule, 0, len(specs))}
	for _, s := range specs {
		re, err := regexp.Compile(s.expr)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", s.name, err)
		}
		// tables without the attributed country cannot use the rule
		if s.country != "" && !t.IsCountry(s.country) {
			continue
		}
		c.rules = append(c.rules, Rule{
			Name:    s.name,
			Stage:   s.stage,
			Tag:     s.tag,
			Scope:   s.scope,
			Pattern: re,
			Split:   s.split,
			Country: s.country,
		})
	}
	return c, nil
}

// Rules returns the rules in priority order
func (c *Catalog) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Stage returns the rules belonging to s, in priority order
func (c *Catalog) Stage(s Stage) []Rule {
	var out []Rule
	for _, r := range c.rules {
		if r.Stage == s {
			out = append(out, r)
		}
	}
	return out
}

// Hit is one rule that matched during an exhaustive scan
type Hit struct {
	Rule   string   `json:"rule"`
	Stage  string   `json:"stage"`
	Tag    Tag      `json:"tag"`
	Groups []string `json:"groups"`
}

// MatchAll runs every rule and reports each one that matched. It does not
// stop at the first hit; it is meant for diagnostics, not resolution.
func (c *Catalog) MatchAll(firstLine, leadingLines string) []Hit {
	var hits []Hit
	for _, r := range c.rules {
		text := firstLine
		if r.Scope == ScopeLeadingLines {
			text = leadingLines
		}
		groups, ok := r.Match(text)
		if !ok {
			continue
		}
		hits = append(hits, Hit{Rule: r.Name, Stage: r.Stage.String(), Tag: r.Tag, Groups: groups})
	}
	return hits
}
