package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/SmolkAI/LibbyBookBackup/internal/schema"
)

// FileResult holds validation results for one record file.
type FileResult struct {
	File     string           `json:"file"`
	Valid    bool             `json:"valid"`
	Findings []schema.Finding `json:"findings,omitempty"`
}

// ValidationResult holds validation results for a whole directory.
type ValidationResult struct {
	Valid   bool         `json:"valid"`
	Checked int          `json:"checked"`
	Invalid int          `json:"invalid"`
	Files   []FileResult `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [books-dir]",
		Short: "Check book records against the export schema",
		Long: `Check every book record in the directory against the expected export
shape. Merge and index skip malformed records silently apart from a
diagnostic; validate surfaces them explicitly so broken exports are caught
before they drop out of the archive.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	dir, err := resolveBooksDir(cfg, args)
	if err != nil {
		return err
	}

	validator, err := schema.New()
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeGeneric+": schema", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeScanError+": scan books directory", err)
	}

	result := ValidationResult{Valid: true}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		result.Checked++
		result.Files = append(result.Files, validateFile(validator, dir, e.Name()))
	}
	for _, f := range result.Files {
		if !f.Valid {
			result.Invalid++
			result.Valid = false
		}
	}

	return outputValidation(formatter, result)
}

func validateFile(validator *schema.Validator, dir, name string) FileResult {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return FileResult{File: name, Findings: []schema.Finding{{Message: err.Error()}}}
	}
	findings, err := validator.Validate(name, data)
	if err != nil {
		// Not JSON at all
		return FileResult{File: name, Findings: []schema.Finding{{Message: err.Error()}}}
	}
	return FileResult{File: name, Valid: len(findings) == 0, Findings: findings}
}

func outputValidation(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			response.Status = "error"
			response.Error = &CLIError{
				Code:    ErrCodeGeneric,
				Message: fmt.Sprintf("%d invalid record(s)", result.Invalid),
			}
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		if !result.Valid {
			return NewExitError(ExitFailure, fmt.Sprintf("validation failed: %d invalid record(s)", result.Invalid))
		}
		return nil
	}

	for _, f := range result.Files {
		if f.Valid {
			formatter.VerboseLog("✓ %s", f.File)
			continue
		}
		fmt.Fprintf(formatter.Writer, "✗ %s\n", f.File)
		for _, finding := range f.Findings {
			if finding.Path != "" {
				fmt.Fprintf(formatter.Writer, "    %s: %s\n", finding.Path, finding.Message)
			} else {
				fmt.Fprintf(formatter.Writer, "    %s\n", finding.Message)
			}
		}
	}
	fmt.Fprintf(formatter.Writer, "Checked %d records: %d valid, %d invalid\n",
		result.Checked, result.Checked-result.Invalid, result.Invalid)

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed: %d invalid record(s)", result.Invalid))
	}
	return nil
}
