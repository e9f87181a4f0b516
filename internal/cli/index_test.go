package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmolkAI/LibbyBookBackup/internal/index"
)

func TestIndexWritesArchive(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "data", "index.json")
	writeBook(t, dir, "dune (downloaded 2024-01-01 00-00).json",
		bookExport("Dune", "Frank Herbert", "ebook", 1000))
	writeBook(t, dir, "left-hand (downloaded 2024-02-01 00-00).json",
		bookExport("The Left Hand of Darkness", "Ursula K. Le Guin", "audiobook", 2000))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewIndexCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir, "--out", out})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Found 2 book files")
	assert.Contains(t, output, "Indexed 2 unique books (0 duplicates removed)")
	assert.Contains(t, output, "Wrote "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var archive index.Archive
	require.NoError(t, json.Unmarshal(data, &archive))
	assert.Equal(t, 2, archive.Stats.TotalBooks)
	require.Len(t, archive.Books, 2)
	assert.Equal(t, "The Left Hand of Darkness", archive.Books[0].Title,
		"sorted by last activity, newest first")
}

func TestIndexJSON(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "index.json")
	writeBook(t, dir, "dune (downloaded 2024-01-01 00-00).json",
		bookExport("Dune", "Frank Herbert", "ebook", 1000))

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewIndexCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir, "--out", out})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	_, err = os.Stat(out)
	require.NoError(t, err)
}

func TestIndexSkipDiagnosticsGoToStderr(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "index.json")
	writeBook(t, dir, "broken.json", "[1, 2, 3]")
	writeBook(t, dir, "dune (downloaded 2024-01-01 00-00).json",
		bookExport("Dune", "Frank Herbert", "ebook", 1000))

	stdoutBuf := &bytes.Buffer{}
	stderrBuf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewIndexCommand(rootOpts)
	cmd.SetOut(stdoutBuf)
	cmd.SetErr(stderrBuf)
	cmd.SetArgs([]string{dir, "--out", out})

	err := cmd.Execute()
	require.NoError(t, err)

	assert.Contains(t, stderrBuf.String(), "SKIP broken.json")
	assert.Contains(t, stdoutBuf.String(), "Indexed 1 unique books")
}

func TestIndexNonExistentDirectory(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewIndexCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/directory/path"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E005")
}

func TestIndexUnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	writeBook(t, dir, "dune (downloaded 2024-01-01 00-00).json",
		bookExport("Dune", "Frank Herbert", "ebook", 1000))

	// A file where the parent directory should be.
	blocked := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))
	out := filepath.Join(blocked, "index.json")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewIndexCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir, "--out", out})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E007")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
