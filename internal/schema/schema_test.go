package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRecord = `{
  "readingJourney": {
    "title": {"text": "Dune", "titleId": "T1"},
    "author": "Frank Herbert",
    "cover": {"format": "ebook"},
    "percent": 65
  },
  "highlights": [{"timestamp": 1000, "quote": "q"}],
  "bookmarks": [{"timestamp": 2000}],
  "circulation": [{"timestamp": 1500, "library": {"text": "City Library"}}]
}`

func TestValidate_ValidRecord(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	findings, err := v.Validate("dune.json", []byte(validRecord))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestValidate_UnknownFieldsAllowed(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	doc := `{
  "exportVersion": "2.1",
  "readingJourney": {
    "title": {"text": "T", "seriesRank": 4},
    "author": "A",
    "cover": {"format": "ebook"}
  }
}`
	findings, err := v.Validate("x.json", []byte(doc))
	require.NoError(t, err)
	assert.Empty(t, findings, "the schema is open; exporter extras pass")
}

func TestValidate_MissingAuthor(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	doc := `{"readingJourney": {"title": {"text": "T"}, "cover": {"format": "ebook"}}}`
	findings, err := v.Validate("x.json", []byte(doc))
	require.NoError(t, err)
	assert.NotEmpty(t, findings, "author is required")
}

func TestValidate_WrongType(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	doc := `{
  "readingJourney": {
    "title": {"text": "T"},
    "author": 42,
    "cover": {"format": "ebook"}
  }
}`
	findings, err := v.Validate("x.json", []byte(doc))
	require.NoError(t, err)
	assert.NotEmpty(t, findings, "numeric author violates the schema")
}

func TestValidate_NonNumericTimestamp(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	doc := `{
  "readingJourney": {
    "title": {"text": "T"},
    "author": "A",
    "cover": {"format": "ebook"}
  },
  "highlights": [{"timestamp": "yesterday", "quote": "q"}]
}`
	findings, err := v.Validate("x.json", []byte(doc))
	require.NoError(t, err)
	assert.NotEmpty(t, findings)
}

func TestValidate_NotJSON(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	_, err = v.Validate("broken.json", []byte("{ not json"))
	require.Error(t, err)
}

func TestValidate_ReusableAcrossDocuments(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		findings, err := v.Validate("dune.json", []byte(validRecord))
		require.NoError(t, err)
		assert.Empty(t, findings)
	}
}
