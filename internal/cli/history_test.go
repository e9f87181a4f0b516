package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmolkAI/LibbyBookBackup/internal/runlog"
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

func seedRunHistory(t *testing.T, db string, n int) {
	t.Helper()
	st, err := runlog.Open(db)
	require.NoError(t, err)
	defer st.Close()

	base := time.UnixMilli(1700000000000)
	for i := 0; i < n; i++ {
		require.NoError(t, st.Record(context.Background(), runlog.Run{
			ID:           string(rune('a' + i)),
			StartedAt:    base.Add(time.Duration(i) * time.Hour),
			FinishedAt:   base.Add(time.Duration(i)*time.Hour + time.Second),
			FilesFound:   10 + i,
			GroupsMerged: i,
			BooksIndexed: 7,
		}))
	}
}

func TestHistoryListsRuns(t *testing.T) {
	db := filepath.Join(t.TempDir(), "archive.db")
	seedRunHistory(t, db, 2)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewHistoryCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", db})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "files 11", "most recent run listed")
	assert.Contains(t, output, "files 10")
	assert.Contains(t, output, "indexed 7")
}

func TestHistoryJSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "archive.db")
	seedRunHistory(t, db, 1)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewHistoryCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", db})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   []runlog.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 10, resp.Data[0].FilesFound)
}

func TestHistoryLimit(t *testing.T) {
	db := filepath.Join(t.TempDir(), "archive.db")
	seedRunHistory(t, db, 5)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewHistoryCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", db, "--limit", "2"})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp struct {
		Data []runlog.Run `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
}

func TestHistoryEmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "archive.db")
	seedRunHistory(t, db, 0)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewHistoryCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--db", db})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No runs recorded.")
}

func TestHistoryNoDatabaseConfigured(t *testing.T) {
	chdir(t, t.TempDir()) // no archive.yaml, no databasePath

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewHistoryCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E008")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
