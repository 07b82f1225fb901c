package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/knit/internal/harness"
)

// FileValidation is the validation outcome of one scenario file.
type FileValidation struct {
	File    string `json:"file"`
	Valid   bool   `json:"valid"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario-file>...",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario files against the scenario schema and check the
references between their elements, sources and steps.

Exit codes:
  0 - All files valid
  1 - One or more files invalid
  2 - A file could not be read`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)

		data, err := os.ReadFile(file)
		if err != nil {
			_ = formatter.Error(ErrCodeLoad, err.Error(), file)
			return WrapExitError(ExitCommandError, "read scenario file", err)
		}

		fv := validateFile(data, file)
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if opts.Format == "json" {
		return outputValidationJSON(formatter, result)
	}
	return outputValidationText(formatter, result)
}

// validateFile runs the schema check, then the reference checks done while
// decoding.
func validateFile(data []byte, file string) FileValidation {
	fv := FileValidation{File: file, Valid: true}

	if _, err := harness.ParseScenario(data, file); err != nil {
		fv.Valid = false
		fv.Code = ErrCodeGeneric
		fv.Message = err.Error()

		var schemaErr *harness.SchemaError
		if errors.As(err, &schemaErr) {
			fv.Code = ErrCodeSchema
			fv.Message = schemaErr.Details
		}
	}
	return fv
}

func outputValidationJSON(formatter *OutputFormatter, result ValidationResult) error {
	if result.Valid {
		return formatter.Success(result)
	}

	invalid := 0
	var first FileValidation
	for _, fv := range result.Files {
		if !fv.Valid {
			if invalid == 0 {
				first = fv
			}
			invalid++
		}
	}

	if err := formatter.encode(CLIResponse{
		Status: "error",
		Data:   result,
		Error:  &CLIError{Code: first.Code, Message: first.Message},
	}); err != nil {
		return err
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed for %d file(s)", invalid))
}

func outputValidationText(formatter *OutputFormatter, result ValidationResult) error {
	invalid := 0
	for _, fv := range result.Files {
		if fv.Valid {
			fmt.Fprintf(formatter.Writer, "✓ %s\n", fv.File)
			continue
		}
		invalid++
		fmt.Fprintf(formatter.Writer, "✗ %s\n", fv.File)
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", fv.Code, fv.Message)
	}

	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed for %d file(s)", invalid))
	}
	return nil
}
