package record

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MergeKey is the coarse identity used to group duplicate exports of the same
// book. Comparison is exact and case-sensitive; no fuzzy matching.
type MergeKey struct {
	Title  string
	Author string
	Format string
}

// Highlight is one highlight event. Its logical identity is the
// (timestamp, quote) pair, assumed unique within a book's true history.
type Highlight struct {
	Timestamp Timestamp
	Quote     string
	Raw       json.RawMessage
}

// Bookmark is one bookmark event, identified by timestamp alone.
type Bookmark struct {
	Timestamp Timestamp
	Raw       json.RawMessage
}

// CirculationEvent is one loan/hold event. Circulation histories are restated
// rather than appended across exports, so they are never merged element-wise.
type CirculationEvent struct {
	Timestamp Timestamp
	Library   *string // library.text; nil when the event carries no library name
	Raw       json.RawMessage
}

type titleInfo struct {
	Text    *string `json:"text"`
	TitleID *string `json:"titleId"`
	URL     *string `json:"url"`
}

type coverInfo struct {
	Format *string `json:"format"`
	URL    *string `json:"url"`
	Color  *string `json:"color"`
}

// BookRecord is one parsed book export.
type BookRecord struct {
	Name string // base filename
	Path string // path the record was loaded from; "" for in-memory records

	Highlights  []Highlight
	Bookmarks   []Bookmark
	Circulation []CirculationEvent

	top     map[string]json.RawMessage
	journey map[string]json.RawMessage

	title     titleInfo
	cover     coverInfo
	author    *string
	publisher *string
	isbn      *string
	percent   *float64
}

// Load reads and parses the record at path.
func Load(path string) (*BookRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	r, err := Parse(filepath.Base(path), data)
	if err != nil {
		return nil, err
	}
	r.Path = path
	return r, nil
}

// Parse decodes a book record from its JSON document. name is the source
// filename, kept for download-date extraction and index identity.
//
// Any document that is not a JSON object, or whose known fields have the
// wrong shape, is rejected as a whole; callers treat that as a per-file
// diagnostic, never a fatal error.
func Parse(name string, data []byte) (*BookRecord, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if top == nil {
		return nil, fmt.Errorf("parse %s: document is null", name)
	}

	r := &BookRecord{Name: name, top: top}

	if raw, ok := top["readingJourney"]; ok {
		if err := json.Unmarshal(raw, &r.journey); err != nil {
			return nil, fmt.Errorf("parse %s: readingJourney: %w", name, err)
		}
	}
	if err := r.decodeJourney(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if err := r.decodeEvents(top); err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return r, nil
}

func (r *BookRecord) decodeJourney() error {
	if raw, ok := r.journey["title"]; ok {
		if err := json.Unmarshal(raw, &r.title); err != nil {
			return fmt.Errorf("readingJourney.title: %w", err)
		}
	}
	if raw, ok := r.journey["cover"]; ok {
		if err := json.Unmarshal(raw, &r.cover); err != nil {
			return fmt.Errorf("readingJourney.cover: %w", err)
		}
	}
	for field, dst := range map[string]**string{
		"author":    &r.author,
		"publisher": &r.publisher,
		"isbn":      &r.isbn,
	} {
		raw, ok := r.journey[field]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("readingJourney.%s: %w", field, err)
		}
	}
	if raw, ok := r.journey["percent"]; ok {
		if err := json.Unmarshal(raw, &r.percent); err != nil {
			return fmt.Errorf("readingJourney.percent: %w", err)
		}
	}
	return nil
}

func (r *BookRecord) decodeEvents(top map[string]json.RawMessage) error {
	items, err := rawList(top, "highlights")
	if err != nil {
		return err
	}
	for i, item := range items {
		var fields struct {
			Timestamp Timestamp `json:"timestamp"`
			Quote     string    `json:"quote"`
		}
		if err := json.Unmarshal(item, &fields); err != nil {
			return fmt.Errorf("highlights[%d]: %w", i, err)
		}
		r.Highlights = append(r.Highlights, Highlight{
			Timestamp: fields.Timestamp,
			Quote:     fields.Quote,
			Raw:       item,
		})
	}

	items, err = rawList(top, "bookmarks")
	if err != nil {
		return err
	}
	for i, item := range items {
		var fields struct {
			Timestamp Timestamp `json:"timestamp"`
		}
		if err := json.Unmarshal(item, &fields); err != nil {
			return fmt.Errorf("bookmarks[%d]: %w", i, err)
		}
		r.Bookmarks = append(r.Bookmarks, Bookmark{Timestamp: fields.Timestamp, Raw: item})
	}

	items, err = rawList(top, "circulation")
	if err != nil {
		return err
	}
	for i, item := range items {
		var fields struct {
			Timestamp Timestamp `json:"timestamp"`
			Library   *struct {
				Text *string `json:"text"`
			} `json:"library"`
		}
		if err := json.Unmarshal(item, &fields); err != nil {
			return fmt.Errorf("circulation[%d]: %w", i, err)
		}
		ev := CirculationEvent{Timestamp: fields.Timestamp, Raw: item}
		if fields.Library != nil {
			ev.Library = fields.Library.Text
		}
		r.Circulation = append(r.Circulation, ev)
	}
	return nil
}

func rawList(top map[string]json.RawMessage, field string) ([]json.RawMessage, error) {
	raw, ok := top[field]
	if !ok {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return items, nil
}

// MergeKey returns the (title, author, format) grouping key. ok is false when
// any of the three fields is absent from the document; such records are never
// grouped, merged or deleted.
func (r *BookRecord) MergeKey() (MergeKey, bool) {
	if r.title.Text == nil || r.author == nil || r.cover.Format == nil {
		return MergeKey{}, false
	}
	return MergeKey{Title: *r.title.Text, Author: *r.author, Format: *r.cover.Format}, true
}

// DownloadDate extracts the export date embedded in the record's filename.
func (r *BookRecord) DownloadDate() DownloadDate {
	return ParseDownloadDate(r.Name)
}

func (r *BookRecord) Title() string      { return strOr(r.title.Text) }
func (r *BookRecord) TitleID() string    { return strOr(r.title.TitleID) }
func (r *BookRecord) TitleURL() string   { return strOr(r.title.URL) }
func (r *BookRecord) Author() string     { return strOr(r.author) }
func (r *BookRecord) Publisher() string  { return strOr(r.publisher) }
func (r *BookRecord) ISBN() string       { return strOr(r.isbn) }
func (r *BookRecord) Format() string     { return strOr(r.cover.Format) }
func (r *BookRecord) CoverURL() string   { return strOr(r.cover.URL) }
func (r *BookRecord) CoverColor() string { return strOr(r.cover.Color) }

// Percent returns the reading progress, or nil when absent/null.
func (r *BookRecord) Percent() *float64 { return r.percent }

// PercentValue returns the reading progress with absent treated as zero.
func (r *BookRecord) PercentValue() float64 {
	if r.percent == nil {
		return 0
	}
	return *r.percent
}

// SetHighlights replaces the highlight collection.
func (r *BookRecord) SetHighlights(hs []Highlight) { r.Highlights = hs }

// SetBookmarks replaces the bookmark collection.
func (r *BookRecord) SetBookmarks(bs []Bookmark) { r.Bookmarks = bs }

// SetCirculation replaces the circulation history.
func (r *BookRecord) SetCirculation(cs []CirculationEvent) { r.Circulation = cs }

// SetPercent overwrites the reading progress in the record.
func (r *BookRecord) SetPercent(v float64) {
	r.percent = &v
	raw, _ := json.Marshal(v)
	if r.journey == nil {
		r.journey = map[string]json.RawMessage{}
	}
	r.journey["percent"] = raw
}

// Encode serializes the record back to an indented JSON document. The three
// event collections are re-emitted from their typed views and readingJourney
// from its raw map (so SetPercent is visible); every other top-level field is
// carried through unmodified from the original document.
func (r *BookRecord) Encode() ([]byte, error) {
	top := make(map[string]json.RawMessage, len(r.top)+4)
	for k, v := range r.top {
		top[k] = v
	}

	var err error
	if top["highlights"], err = marshalRaws(highlightRaws(r.Highlights)); err != nil {
		return nil, fmt.Errorf("encode %s: highlights: %w", r.Name, err)
	}
	if top["bookmarks"], err = marshalRaws(bookmarkRaws(r.Bookmarks)); err != nil {
		return nil, fmt.Errorf("encode %s: bookmarks: %w", r.Name, err)
	}
	if top["circulation"], err = marshalRaws(circulationRaws(r.Circulation)); err != nil {
		return nil, fmt.Errorf("encode %s: circulation: %w", r.Name, err)
	}
	if r.journey != nil {
		j, err := json.Marshal(r.journey)
		if err != nil {
			return nil, fmt.Errorf("encode %s: readingJourney: %w", r.Name, err)
		}
		top["readingJourney"] = j
	}

	out, err := json.MarshalIndent(top, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", r.Name, err)
	}
	return out, nil
}

func marshalRaws(items []json.RawMessage) (json.RawMessage, error) {
	if items == nil {
		items = []json.RawMessage{}
	}
	return json.Marshal(items)
}

func highlightRaws(hs []Highlight) []json.RawMessage {
	raws := make([]json.RawMessage, len(hs))
	for i, h := range hs {
		raws[i] = h.Raw
	}
	return raws
}

func bookmarkRaws(bs []Bookmark) []json.RawMessage {
	raws := make([]json.RawMessage, len(bs))
	for i, b := range bs {
		raws[i] = b.Raw
	}
	return raws
}

func circulationRaws(cs []CirculationEvent) []json.RawMessage {
	raws := make([]json.RawMessage, len(cs))
	for i, c := range cs {
		raws[i] = c.Raw
	}
	return raws
}

func strOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
