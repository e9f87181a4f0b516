package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/SmolkAI/LibbyBookBackup/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return config.Default()
}

// writeBook drops a minimal but well-formed export into dir.
func writeBook(t *testing.T, dir, name, doc string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o644))
}

// bookExport builds a record for title/author/format with the given
// circulation timestamp.
func bookExport(title, author, format string, ts int64) string {
	return fmt.Sprintf(`{
  "readingJourney": {
    "title": {"text": %q, "titleId": "id-%s"},
    "author": %q,
    "cover": {"format": %q},
    "percent": 50
  },
  "highlights": [{"timestamp": %d, "quote": "passage"}],
  "bookmarks": [],
  "circulation": [{"timestamp": %d, "library": {"text": "City Library"}}]
}`, title, title, author, format, ts, ts)
}

// listJSONFiles returns the JSON filenames currently in dir.
func listJSONFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, filepath.Base(m))
	}
	return names
}
