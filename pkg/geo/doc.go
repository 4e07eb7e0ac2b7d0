// Package geo holds the reference tables used to resolve caption text into
// countries and cities.
//
// Four tables are exposed through an immutable *Tables value:
//   - canonical country names plus an alias table (Holland -> Netherlands)
//   - city -> canonical country
//   - canonical country -> centroid coordinates
//   - city -> coordinates, and a place table for non-Latin spellings
//
// The default data is embedded from data/reference.yaml. A local YAML file
// with the same shape can be overlaid with Load. Data problems are
// reported at load time as reference_data errors; lookups never fail.
package geo
