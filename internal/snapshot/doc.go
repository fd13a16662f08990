// Package snapshot implements the on-disk cache of upstream feed snapshots.
//
// Each key maps to one JSON file, <dir>/<key>.json, holding the payload's
// fields flattened next to a "timestamp" recording when it was written:
//
//	{"timestamp": "2026-10-18T09:00:00.000Z", "appointments": [...]}
//
// Writes go to a temporary file in the same directory which is then renamed
// over the target, so a reader sees either the previous snapshot or the new
// one and never a partial file. Reads take no lock.
//
// A missing file means the feed has never been fetched successfully. Get
// reports that as ok == false, not as an error.
package snapshot
