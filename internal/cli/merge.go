package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SmolkAI/LibbyBookBackup/internal/merge"
)

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge [books-dir]",
		Short: "Collapse duplicate book exports into single files",
		Long: `Collapse duplicate book exports (same title, author and format) into
single files.

For each duplicate group the oldest download becomes the surviving file;
highlights and bookmarks are unioned without loss, the most complete
circulation history and the highest reading progress win, and the redundant
files are deleted. Safe to re-run: a merged archive merges to itself.

Example:
  libbybackup merge ./books`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runMerge(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	dir, err := resolveBooksDir(cfg, args)
	if err != nil {
		return err
	}

	result, err := merge.Run(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeScanError+": merge run", err)
	}

	reportMergeSkips(formatter, result)
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	printMergeSummary(formatter, result)
	return nil
}

// reportMergeSkips surfaces per-file diagnostics separately from the summary.
func reportMergeSkips(formatter *OutputFormatter, result *merge.Result) {
	for _, s := range result.Skipped {
		formatter.Diag("SKIP %s: %s", s.Name, s.Reason)
	}
}

func printMergeSummary(formatter *OutputFormatter, result *merge.Result) {
	w := formatter.Writer

	fmt.Fprintf(w, "Total files: %d\n", result.FilesFound)
	fmt.Fprintf(w, "Unique books: %d\n", result.UniqueBooks)
	fmt.Fprintf(w, "Groups with duplicates: %d\n", len(result.Groups))

	for _, g := range result.Groups {
		if g.Error != "" {
			fmt.Fprintf(w, "  %s [%s]: FAILED: %s\n", g.Title, g.Format, g.Error)
			continue
		}
		extra := ""
		if g.RecoveredHighlights > 0 || g.RecoveredBookmarks > 0 {
			extra = fmt.Sprintf(" (recovered +%d hl, +%d bm from older files)",
				g.RecoveredHighlights, g.RecoveredBookmarks)
		}
		fmt.Fprintf(w, "  %s [%s]: %d -> 1 file, %d hl, %d bm%s\n",
			g.Title, g.Format, g.Members, g.Highlights, g.Bookmarks, extra)
	}

	fmt.Fprintf(w, "Merged %d groups, deleted %d redundant files\n",
		result.GroupsMerged, result.FilesDeleted)
}
