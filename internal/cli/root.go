package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/SmolkAI/LibbyBookBackup/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string // optional archive.yaml path
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the libbybackup CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "libbybackup",
		Short: "Maintain a local archive of Libby book exports",
		Long: `Maintain a local archive of per-book reading-activity exports.

The archive accumulates one JSON file per download; repeated downloads of the
same book produce duplicates. "merge" collapses them, "index" builds the
consolidated document the browsing UI reads, and "sync" runs both in order.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			configureLogging(opts.Verbose)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to archive.yaml (default ./archive.yaml when present)")

	// Add subcommands
	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewIndexCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// configureLogging routes slog to stderr; --verbose raises the level to debug.
func configureLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// newFormatter builds the standard output formatter for a command.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Diagnostics go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// loadConfig resolves the tool configuration for a command.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, ErrCodeConfig+": load config", err)
	}
	return cfg, nil
}

// resolveBooksDir picks the books directory from the positional argument or
// the configuration, and verifies it exists. A missing directory is fatal to
// the whole run.
func resolveBooksDir(cfg *config.Config, args []string) (string, error) {
	dir := cfg.BooksDir
	if len(args) > 0 {
		dir = args[0]
	}
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("%s: books directory not found: %s", ErrCodeNotFound, dir))
	}
	if err != nil {
		return "", WrapExitError(ExitCommandError, ErrCodeScanError+": access books directory", err)
	}
	if !info.IsDir() {
		return "", NewExitError(ExitCommandError, fmt.Sprintf("%s: not a directory: %s", ErrCodeNotFound, dir))
	}
	return dir, nil
}
