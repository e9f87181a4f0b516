// Package record models a single Libby book export on disk.
//
// A book record is one JSON document per downloaded book. The exporter writes
// a new file on every export, so the archive accumulates multiple snapshots
// of the same book over time; the merge and index packages reconcile them.
//
// Parsing is preservation-oriented: the top-level document and the
// readingJourney object are held as raw JSON maps with typed views decoded on
// the side, so a merge rewrites only the fields it understands and carries
// every other field through byte-for-byte.
package record
