// Package merge collapses duplicate book records on disk.
//
// Repeated exports of the same book produce multiple files whose
// (title, author, format) identity matches. The merger partitions a books
// directory into equivalence groups by that key, reconciles each group into
// the member with the oldest embedded download date, rewrites that file and
// deletes the rest.
//
// The pass is idempotent: after one run every group has exactly one member,
// so a second run changes nothing. Failures are isolated per file (parse) and
// per group (write/delete); only a missing directory aborts the run.
package merge

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/SmolkAI/LibbyBookBackup/internal/record"
)

// SkippedFile describes a record excluded from grouping.
type SkippedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// GroupReport describes the outcome for one duplicate group.
type GroupReport struct {
	Title      string `json:"title"`
	Author     string `json:"author"`
	Format     string `json:"format"`
	Members    int    `json:"members"`
	Keeper     string `json:"keeper"`
	Highlights int    `json:"highlights"`
	Bookmarks  int    `json:"bookmarks"`

	// Events present only in non-surviving files, recovered by the union.
	RecoveredHighlights int `json:"recoveredHighlights,omitempty"`
	RecoveredBookmarks  int `json:"recoveredBookmarks,omitempty"`

	// Error is set when the group's write or delete failed; the group may be
	// partially applied but the rest of the run continues.
	Error string `json:"error,omitempty"`
}

// Result summarizes a merge run.
type Result struct {
	FilesFound   int           `json:"filesFound"`
	UniqueBooks  int           `json:"uniqueBooks"`
	GroupsMerged int           `json:"groupsMerged"`
	FilesDeleted int           `json:"filesDeleted"`
	Skipped      []SkippedFile `json:"skipped,omitempty"`
	Groups       []GroupReport `json:"groups,omitempty"`
}

// Run merges all duplicate groups in dir. A missing or unreadable directory
// is the only fatal error; everything else becomes a diagnostic on the
// Result.
func Run(dir string) (*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan books directory: %w", err)
	}

	result := &Result{}
	groups := make(map[record.MergeKey][]*record.BookRecord)
	var keys []record.MergeKey

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		result.FilesFound++

		rec, err := record.Load(filepath.Join(dir, e.Name()))
		if err != nil {
			slog.Warn("skipping record", "file", e.Name(), "error", err)
			result.Skipped = append(result.Skipped, SkippedFile{Name: e.Name(), Reason: err.Error()})
			continue
		}
		key, ok := rec.MergeKey()
		if !ok {
			slog.Warn("skipping record without identity fields", "file", e.Name())
			result.Skipped = append(result.Skipped, SkippedFile{
				Name:   e.Name(),
				Reason: "missing title, author or format",
			})
			continue
		}
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], rec)
	}
	result.UniqueBooks = len(groups)

	// Process groups in key order so reruns and reports are deterministic.
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		if a.Author != b.Author {
			return a.Author < b.Author
		}
		return a.Format < b.Format
	})

	for _, key := range keys {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		report, deleted := mergeGroup(key, members)
		result.FilesDeleted += deleted
		result.Groups = append(result.Groups, report)
		if report.Error == "" {
			result.GroupsMerged++
		}
	}
	return result, nil
}

// mergeGroup reconciles one duplicate group and applies the outcome to disk.
// Returns the group report and the number of files actually deleted.
func mergeGroup(key record.MergeKey, members []*record.BookRecord) (GroupReport, int) {
	// Oldest download date first; undated files sort last and are never the
	// base when a dated alternative exists.
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].DownloadDate().Before(members[j].DownloadDate())
	})
	base := members[0]

	origHighlights, origBookmarks := 0, 0
	for _, m := range members {
		if n := len(m.Highlights); n > origHighlights {
			origHighlights = n
		}
		if n := len(m.Bookmarks); n > origBookmarks {
			origBookmarks = n
		}
	}

	reconcile(base, members)

	report := GroupReport{
		Title:               key.Title,
		Author:              key.Author,
		Format:              key.Format,
		Members:             len(members),
		Keeper:              base.Name,
		Highlights:          len(base.Highlights),
		Bookmarks:           len(base.Bookmarks),
		RecoveredHighlights: len(base.Highlights) - origHighlights,
		RecoveredBookmarks:  len(base.Bookmarks) - origBookmarks,
	}

	deleted, err := applyGroup(base, members[1:])
	if err != nil {
		slog.Error("merge group failed", "title", key.Title, "error", err)
		report.Error = err.Error()
		return report, deleted
	}

	slog.Info("merged group",
		"title", key.Title,
		"format", key.Format,
		"members", len(members),
		"highlights", report.Highlights,
		"bookmarks", report.Bookmarks)
	return report, deleted
}

type highlightKey struct {
	millis int64
	valid  bool
	quote  string
}

type bookmarkKey struct {
	millis int64
	valid  bool
}

// reconcile folds all members into base:
//
//   - highlights: union deduplicated by (timestamp, quote), first seen wins,
//     sorted ascending by timestamp (absent sorts lowest)
//   - bookmarks: union deduplicated by timestamp, same sort
//   - circulation: the longest member history wins whole, never element-wise
//   - percent: maximum across members, written back only when nonzero
//
// All other base fields are left untouched.
func reconcile(base *record.BookRecord, members []*record.BookRecord) {
	seenHL := make(map[highlightKey]bool)
	var highlights []record.Highlight
	for _, m := range members {
		for _, h := range m.Highlights {
			k := highlightKey{h.Timestamp.Millis, h.Timestamp.Valid, h.Quote}
			if seenHL[k] {
				continue
			}
			seenHL[k] = true
			highlights = append(highlights, h)
		}
	}
	sort.SliceStable(highlights, func(i, j int) bool {
		return highlights[i].Timestamp.SortValue() < highlights[j].Timestamp.SortValue()
	})
	base.SetHighlights(highlights)

	seenBM := make(map[bookmarkKey]bool)
	var bookmarks []record.Bookmark
	for _, m := range members {
		for _, b := range m.Bookmarks {
			k := bookmarkKey{b.Timestamp.Millis, b.Timestamp.Valid}
			if seenBM[k] {
				continue
			}
			seenBM[k] = true
			bookmarks = append(bookmarks, b)
		}
	}
	sort.SliceStable(bookmarks, func(i, j int) bool {
		return bookmarks[i].Timestamp.SortValue() < bookmarks[j].Timestamp.SortValue()
	})
	base.SetBookmarks(bookmarks)

	circulation := base.Circulation
	for _, m := range members {
		if len(m.Circulation) > len(circulation) {
			circulation = m.Circulation
		}
	}
	base.SetCirculation(circulation)

	var best float64
	for _, m := range members {
		if v := m.PercentValue(); v > best {
			best = v
		}
	}
	if best != 0 {
		base.SetPercent(best)
	}
}

// applyGroup writes the merged base and deletes the redundant files. The
// merged content is staged to a temp file in the same directory and renamed
// over the base, so a crash never leaves the keeper half-written.
func applyGroup(base *record.BookRecord, redundant []*record.BookRecord) (int, error) {
	data, err := base.Encode()
	if err != nil {
		return 0, err
	}

	tmp := base.Path + ".tmp-" + uuid.NewString()
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return 0, fmt.Errorf("stage merged record: %w", err)
	}
	if err := os.Rename(tmp, base.Path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("replace %s: %w", base.Name, err)
	}

	deleted := 0
	for _, m := range redundant {
		if err := os.Remove(m.Path); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", m.Name, err)
		}
		deleted++
	}
	return deleted, nil
}
