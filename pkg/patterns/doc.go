// Package patterns defines the ordered rule catalog used by the location
// extractor.
//
// Each Rule carries a Stage (gps, bullet, city_first, country_name,
// legacy_fallback), a Tag that says how its captured groups are read, and a
// Scope that selects the first caption line or the first two lines. Rules
// are kept in priority order; the extractor stops at the first rule that
// resolves, while MatchAll reports every rule that fires.
//
// Country names are matched on word boundaries. Only Latin letters and
// digits count as word characters, so a country name directly followed by
// CJK text still matches.
package patterns
