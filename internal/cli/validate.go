package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ValidationError is one schema problem, located in its CUE file.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Files   int               `json:"files"`
	Schemas []string          `json:"schemas,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schemas-dir]",
		Short: "Check CUE schemas without dispatching anything",
		Long: `Compile the CUE schemas of a directory and report every problem found:
CUE syntax and evaluation errors, unknown or malformed references, unions
without a discriminator, empty keys.

The directory defaults to --schemas (or schemas in normware.yaml).

Exit codes:
  0 - All schemas valid
  1 - One or more schema errors
  2 - Command error (directory not found, no CUE files)`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := rootOpts.Schemas
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := LoadSchemas(dir, LoadModeCollectAll)

	// Directory not found, no files, CUE that does not load or build.
	if loadResult == nil {
		loadErr := firstLoadError(loadErrors)
		if isSourceError(loadErr) {
			return outputValidationErrors(formatter, ValidationResult{Errors: toValidationErrors(loadErrors)})
		}
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, dir)

	result := ValidationResult{
		Valid: len(loadErrors) == 0,
		Files: loadResult.FileCount,
	}
	if !result.Valid {
		result.Errors = toValidationErrors(loadErrors)
		return outputValidationErrors(formatter, result)
	}

	result.Schemas = loadResult.Registry.Names()
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "%s %d schema(s) valid: %s\n", markOK, len(result.Schemas), strings.Join(result.Schemas, ", "))
	return nil
}

// isSourceError reports whether err is a problem in the CUE files
// themselves rather than in locating them.
func isSourceError(err *LoadError) bool {
	return err.Pos.IsValid() || err.Code == ErrCodeLoadFailed || err.Code == ErrCodeBuildFailed
}

func toValidationErrors(errs []error) []ValidationError {
	out := make([]ValidationError, 0, len(errs))
	for _, err := range errs {
		loadErr := firstLoadError([]error{err})
		ve := ValidationError{
			Code:    loadErr.Code,
			Field:   loadErr.Field,
			Message: loadErr.Message,
			Line:    loadErr.Line(),
		}
		if loadErr.Pos.IsValid() {
			ve.File = loadErr.Pos.Filename()
		}
		out = append(out, ve)
	}
	return out
}

// outputValidationErrors reports schema errors. Validation failures exit 1.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		if err := formatter.Failure(result, errs[0].Code, errs[0].Message); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintf(formatter.Writer, "%s Validation failed\n\n", markFail)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", err.File, err.Line)
		}
		if err.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
		}
	}
	return exitErr
}
