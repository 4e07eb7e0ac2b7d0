// Package checkpoint saves and resumes Graph API media fetches.
//
// A fetch can be interrupted by network failures, rate limits or a manual
// stop. The checkpoint tracks:
//   - The last processed page and the URL of the next one
//   - Every post fetched so far, so a resumed run does not refetch them
//   - Whether the final page has been reached
//
// Paging URLs are stored without their access token. Checkpoints live under
// the output directory or, by default, in a per-user data directory:
//   - Linux: ~/.local/share/travelmap/checkpoints/
//   - macOS: ~/Library/Application Support/travelmap/checkpoints/
//   - Windows: %APPDATA%/travelmap/checkpoints/
package checkpoint
