package record

import "regexp"

// downloadPattern matches the recency hint the exporter embeds in filenames,
// e.g. "Dune (downloaded 2024-06-01 00-00).json".
var downloadPattern = regexp.MustCompile(`\(downloaded (\d{4}-\d{2}-\d{2} \d{2}-\d{2})\)`)

// DownloadDate is the optional export timestamp embedded in a record's
// filename. It is out-of-band metadata: it never appears in the JSON body and
// is used only to pick a deterministic base record among duplicates.
//
// Filenames without the hint sort after every dated filename, so an undated
// record is never chosen as merge base when a dated alternative exists.
type DownloadDate struct {
	value string // "YYYY-MM-DD HH-MM", lexicographic order == chronological order
	known bool
}

// ParseDownloadDate extracts the download date from a filename.
func ParseDownloadDate(name string) DownloadDate {
	m := downloadPattern.FindStringSubmatch(name)
	if m == nil {
		return DownloadDate{}
	}
	return DownloadDate{value: m[1], known: true}
}

// Known reports whether the filename carried a recognizable download date.
func (d DownloadDate) Known() bool { return d.known }

// String returns the raw "YYYY-MM-DD HH-MM" value, or "" when unknown.
func (d DownloadDate) String() string { return d.value }

// Before reports whether d sorts strictly before other. Unknown dates are
// treated as maximally recent.
func (d DownloadDate) Before(other DownloadDate) bool {
	if d.known != other.known {
		return d.known
	}
	return d.value < other.value
}
