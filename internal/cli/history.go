package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmolkAI/LibbyBookBackup/internal/runlog"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded sync runs",
		Long: `List summaries of past sync runs from the run-history database.

Example:
  libbybackup history --db archive.db --limit 10`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "run-history database path (default from config)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to show")
	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	db := opts.Database
	if db == "" {
		db = cfg.DatabasePath
	}
	if db == "" {
		return NewExitError(ExitCommandError,
			ErrCodeDatabase+": no run-history database configured (set --db or databasePath)")
	}

	st, err := runlog.Open(db)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeDatabase+": open run log", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing run log", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	runs, err := st.Recent(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeDatabase+": read run log", err)
	}

	if opts.Format == "json" {
		return formatter.Success(runs)
	}

	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  files %d, merged %d, deleted %d, indexed %d, skipped %d\n",
			r.StartedAt.Format(time.RFC3339),
			r.FilesFound, r.GroupsMerged, r.FilesDeleted, r.BooksIndexed, r.FilesSkipped)
	}
	return nil
}
