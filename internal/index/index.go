// Package index builds the consolidated archive index consumed by the
// browsing UI.
//
// The builder reads every parseable record in a books directory (normally
// after the merge pass has collapsed exact duplicates), projects each into a
// flat Entry, deduplicates a second time by the stronger titleId identity and
// emits a single {stats, books} document. The second dedup pass exists
// because the merge key (title, author, format) and titleId can disagree:
// an export that initially lacked a resolved titleId is never caught by the
// merger, so duplicates can still reach the builder.
package index

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/SmolkAI/LibbyBookBackup/internal/record"
)

// Entry is the flattened projection of one book record.
type Entry struct {
	File             string   `json:"file"`
	TitleID          string   `json:"titleId"`
	Title            string   `json:"title"`
	URL              string   `json:"url"`
	Author           string   `json:"author"`
	Publisher        string   `json:"publisher"`
	ISBN             string   `json:"isbn"`
	Format           string   `json:"format"`
	CoverURL         string   `json:"coverUrl"`
	CoverColor       string   `json:"coverColor"`
	Percent          *float64 `json:"percent"`
	HighlightCount   int      `json:"highlightCount"`
	BookmarkCount    int      `json:"bookmarkCount"`
	FirstBorrowed    *int64   `json:"firstBorrowed"`
	LastActivity     *int64   `json:"lastActivity"`
	Libraries        []string `json:"libraries"`
	CirculationCount int      `json:"circulationCount"`
}

// Stats aggregates counts across all surviving entries.
type Stats struct {
	TotalBooks      int            `json:"totalBooks"`
	TotalHighlights int            `json:"totalHighlights"`
	TotalBookmarks  int            `json:"totalBookmarks"`
	Formats         map[string]int `json:"formats"`
	Libraries       map[string]int `json:"libraries"`
	TopAuthors      map[string]int `json:"topAuthors"`
}

// Archive is the single output artifact of an index run.
type Archive struct {
	Stats Stats   `json:"stats"`
	Books []Entry `json:"books"`
}

// SkippedFile describes a record excluded from the index.
type SkippedFile struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Report summarizes an index build.
type Report struct {
	FilesFound        int           `json:"filesFound"`
	Indexed           int           `json:"indexed"`
	DuplicatesRemoved int           `json:"duplicatesRemoved"`
	Skipped           []SkippedFile `json:"skipped,omitempty"`
}

// Build reads every record in dir and produces the archive index. A missing
// or unreadable directory is the only fatal error; unparseable records are
// skipped with a diagnostic on the Report.
func Build(dir string) (*Archive, *Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("scan books directory: %w", err)
	}

	report := &Report{}
	var books []Entry
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		report.FilesFound++

		rec, err := record.Load(filepath.Join(dir, e.Name()))
		if err != nil {
			slog.Warn("skipping record", "file", e.Name(), "error", err)
			report.Skipped = append(report.Skipped, SkippedFile{Name: e.Name(), Reason: err.Error()})
			continue
		}
		books = append(books, project(rec))
	}

	deduped := dedupe(books)
	sort.Slice(deduped, func(i, j int) bool {
		ai, aj := activityValue(deduped[i]), activityValue(deduped[j])
		if ai != aj {
			return ai > aj
		}
		return deduped[i].File < deduped[j].File
	})

	report.Indexed = len(deduped)
	report.DuplicatesRemoved = len(books) - len(deduped)

	return &Archive{Stats: computeStats(deduped), Books: deduped}, report, nil
}

// project flattens one record into an index entry.
func project(r *record.BookRecord) Entry {
	e := Entry{
		File:             r.Name,
		TitleID:          r.TitleID(),
		Title:            r.Title(),
		URL:              r.TitleURL(),
		Author:           r.Author(),
		Publisher:        r.Publisher(),
		ISBN:             r.ISBN(),
		Format:           r.Format(),
		CoverURL:         r.CoverURL(),
		CoverColor:       r.CoverColor(),
		Percent:          r.Percent(),
		HighlightCount:   len(r.Highlights),
		BookmarkCount:    len(r.Bookmarks),
		CirculationCount: len(r.Circulation),
		Libraries:        make([]string, 0),
	}

	seen := make(map[string]bool)
	for _, ev := range r.Circulation {
		if ev.Timestamp.Valid {
			ts := ev.Timestamp.Millis
			if e.FirstBorrowed == nil || ts < *e.FirstBorrowed {
				v := ts
				e.FirstBorrowed = &v
			}
			if e.LastActivity == nil || ts > *e.LastActivity {
				v := ts
				e.LastActivity = &v
			}
		}
		if ev.Library != nil && !seen[*ev.Library] {
			seen[*ev.Library] = true
			e.Libraries = append(e.Libraries, *ev.Library)
		}
	}
	// The set has no inherent order; collate for stable output.
	coll := collate.New(language.English)
	coll.SortStrings(e.Libraries)
	return e
}

// dedupe keeps one entry per non-empty titleId, preferring the
// lexicographically greatest filename (a proxy for the most recent download,
// since filenames embed the export date). Entries without a titleId are keyed
// by their own filename and always survive standalone.
func dedupe(books []Entry) []Entry {
	byID := make(map[string]Entry, len(books))
	for _, b := range books {
		if b.TitleID == "" {
			byID[b.File] = b
			continue
		}
		existing, ok := byID[b.TitleID]
		if !ok || b.File > existing.File {
			byID[b.TitleID] = b
		}
	}

	deduped := make([]Entry, 0, len(byID))
	for _, b := range byID {
		deduped = append(deduped, b)
	}
	return deduped
}

// activityValue orders entries for the final sort; no activity sorts last.
func activityValue(e Entry) int64 {
	if e.LastActivity == nil {
		return 0
	}
	return *e.LastActivity
}
