// Package location turns Instagram captions into a country and city.
//
// Extraction reads the first two non-blank lines of a caption and walks the
// pattern catalog stage by stage:
//
//  1. gps: "📍 City, Country" or "📍 Country"
//  2. bullet: "Country • City" or "Country・City" on the first line
//  3. city_first: a known city as the first token
//  4. country_name: any country or alias on the first line, on word boundaries
//  5. legacy_fallback: labels, "City, Country" and known place literals
//
// The first rule that resolves to a canonical country wins. A nil
// *Location means the caption names no place; it is not an error.
package location
