package index

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	// fallbackFormat labels entries whose export carried no cover format.
	fallbackFormat = "unknown"
	// topAuthorLimit caps the topAuthors mapping.
	topAuthorLimit = 20
)

// computeStats aggregates collection-wide statistics over the final ordered
// entry list. Library counts increment once per library per book, not per
// circulation event.
func computeStats(books []Entry) Stats {
	s := Stats{
		TotalBooks: len(books),
		Formats:    make(map[string]int),
		Libraries:  make(map[string]int),
	}

	authorCounts := make(map[string]int)
	for _, b := range books {
		s.TotalHighlights += b.HighlightCount
		s.TotalBookmarks += b.BookmarkCount

		format := b.Format
		if format == "" {
			format = fallbackFormat
		}
		s.Formats[format]++

		for _, lib := range b.Libraries {
			s.Libraries[lib]++
		}
		if b.Author != "" {
			authorCounts[b.Author]++
		}
	}

	s.TopAuthors = topAuthors(authorCounts, topAuthorLimit)
	return s
}

// topAuthors truncates the author counts to the top limit by count
// descending. Equal counts at the boundary are broken by English collation
// of the author name, ascending, so the selection is deterministic.
func topAuthors(counts map[string]int, limit int) map[string]int {
	type authorCount struct {
		name  string
		count int
	}
	pairs := make([]authorCount, 0, len(counts))
	for name, n := range counts {
		pairs = append(pairs, authorCount{name: name, count: n})
	}

	coll := collate.New(language.English)
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return coll.CompareString(pairs[i].name, pairs[j].name) < 0
	})

	if len(pairs) > limit {
		pairs = pairs[:limit]
	}
	top := make(map[string]int, len(pairs))
	for _, p := range pairs {
		top[p.name] = p.count
	}
	return top
}
