package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/SmolkAI/LibbyBookBackup/internal/index"
	"github.com/SmolkAI/LibbyBookBackup/internal/merge"
	"github.com/SmolkAI/LibbyBookBackup/internal/runlog"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Output   string
	Database string
}

// syncResponse is the JSON payload of a successful sync run.
type syncResponse struct {
	Merge  *merge.Result `json:"merge"`
	Report *index.Report `json:"report"`
	Stats  index.Stats   `json:"stats"`
	Output string        `json:"output"`
	RunID  string        `json:"runId,omitempty"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync [books-dir]",
		Short: "Merge duplicates, then rebuild the index",
		Long: `Run the full pipeline: collapse duplicate exports, then rebuild the
consolidated index from the surviving files. The order matters - the index
builder assumes exact-match duplicate groups are already collapsed.

With a run-history database configured, each sync records a summary row.

Example:
  libbybackup sync ./books --out ui/data/index.json --db archive.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Output, "out", "", "index output path (default from config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "run-history database path (default from config)")
	return cmd
}

func runSync(opts *SyncOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	dir, err := resolveBooksDir(cfg, args)
	if err != nil {
		return err
	}
	out := opts.Output
	if out == "" {
		out = cfg.IndexPath
	}
	db := opts.Database
	if db == "" {
		db = cfg.DatabasePath
	}

	started := time.Now()

	mergeResult, err := merge.Run(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeScanError+": merge run", err)
	}
	reportMergeSkips(formatter, mergeResult)

	archive, report, err := index.Build(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeScanError+": index build", err)
	}
	for _, s := range report.Skipped {
		formatter.Diag("SKIP %s: %s", s.Name, s.Reason)
	}

	if err := index.WriteArchive(out, archive); err != nil {
		return WrapExitError(ExitCommandError, ErrCodeWriteFailed+": write index", err)
	}

	runID := ""
	if db != "" {
		runID = recordRun(cmd.Context(), db, runlog.Run{
			ID:           uuid.NewString(),
			StartedAt:    started,
			FinishedAt:   time.Now(),
			FilesFound:   mergeResult.FilesFound,
			GroupsMerged: mergeResult.GroupsMerged,
			FilesDeleted: mergeResult.FilesDeleted,
			BooksIndexed: report.Indexed,
			FilesSkipped: len(mergeResult.Skipped) + len(report.Skipped),
		})
	}

	if opts.Format == "json" {
		return formatter.Success(syncResponse{
			Merge:  mergeResult,
			Report: report,
			Stats:  archive.Stats,
			Output: out,
			RunID:  runID,
		})
	}

	printMergeSummary(formatter, mergeResult)
	w := formatter.Writer
	fmt.Fprintf(w, "Indexed %d unique books (%d duplicates removed)\n",
		report.Indexed, report.DuplicatesRemoved)
	fmt.Fprintf(w, "Wrote %s\n", out)
	return nil
}

// recordRun appends the run summary to the run-history database. The run log
// is reporting only: a failure here is a diagnostic, never a sync failure.
func recordRun(ctx context.Context, db string, run runlog.Run) string {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := runlog.Open(db)
	if err != nil {
		slog.Error("run log unavailable", "db", db, "error", err)
		return ""
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing run log", "error", closeErr)
		}
	}()

	if err := st.Record(ctx, run); err != nil {
		slog.Error("failed to record run", "error", err)
		return ""
	}
	return run.ID
}
