package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SmolkAI/LibbyBookBackup/internal/index"
)

// IndexOptions holds flags for the index command.
type IndexOptions struct {
	*RootOptions
	Output string
}

// indexResponse is the JSON payload of a successful index run.
type indexResponse struct {
	Report *index.Report `json:"report"`
	Stats  index.Stats   `json:"stats"`
	Output string        `json:"output"`
}

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IndexOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "index [books-dir]",
		Short: "Build the consolidated archive index",
		Long: `Build the consolidated {stats, books} index document from the books
directory. Run after merge: the builder tolerates leftover duplicates via a
titleId dedup pass, but exact-match groups should already be collapsed.

Example:
  libbybackup index ./books --out ui/data/index.json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Output, "out", "", "index output path (default from config)")
	return cmd
}

func runIndex(opts *IndexOptions, args []string, cmd *cobra.Command) error {
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

	if opts.Format == "json" {
		return formatter.Success(indexResponse{Report: report, Stats: archive.Stats, Output: out})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Found %d book files in %s\n", report.FilesFound, dir)
	fmt.Fprintf(w, "Indexed %d unique books (%d duplicates removed)\n",
		report.Indexed, report.DuplicatesRemoved)
	if info, err := os.Stat(out); err == nil {
		fmt.Fprintf(w, "Wrote %s (%.1f KB)\n", out, float64(info.Size())/1024)
	} else {
		fmt.Fprintf(w, "Wrote %s\n", out)
	}
	return nil
}
