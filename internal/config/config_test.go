package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir switches to dir for the duration of the test, restoring the
// previous working directory on cleanup (t.Chdir needs Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	// Run from an empty directory so no stray archive.yaml is picked up.
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "books", cfg.BooksDir)
	assert.Equal(t, filepath.Join("ui", "data", "index.json"), cfg.IndexPath)
	assert.Empty(t, cfg.DatabasePath)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"booksDir: /srv/books\nindexPath: /srv/index.json\ndatabasePath: /srv/runs.db\n",
	), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/books", cfg.BooksDir)
	assert.Equal(t, "/srv/index.json", cfg.IndexPath)
	assert.Equal(t, "/srv/runs.db", cfg.DatabasePath)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.yaml")
	require.NoError(t, os.WriteFile(path, []byte("booksDir: exports\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "exports", cfg.BooksDir)
	assert.Equal(t, filepath.Join("ui", "data", "index.json"), cfg.IndexPath)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.yaml")
	require.NoError(t, os.WriteFile(path, []byte("booksDir: from-file\n"), 0o644))

	t.Setenv("LIBBY_BOOKS_DIR", "from-env")
	t.Setenv("LIBBY_DB_PATH", "env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.BooksDir)
	assert.Equal(t, "env.db", cfg.DatabasePath)
}

func TestLoad_ExplicitMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_ImplicitMissingFileOK(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "books", cfg.BooksDir)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.yaml")
	require.NoError(t, os.WriteFile(path, []byte("booksDir: [unclosed\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
