// Package travel turns located posts into the travel-data document read by
// the map front end.
//
// The Aggregator resolves each fetched post, preferring the location
// Instagram attached to the post and falling back to caption extraction.
// Posts without a country are left out of the document. The Cleaner
// repairs documents written by older extractors: it merges alias keys,
// deletes keys that never named a place and can re-extract every caption.
// Assess reports coverage and missing coordinates.
package travel
