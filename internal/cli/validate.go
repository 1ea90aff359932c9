package cli

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/gudam/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool       `json:"valid"`
	Stores []string   `json:"stores,omitempty"`
	Errors []CLIError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate store specs",
		Long: `Validate the CUE store specs in a directory.

Every store is compiled and checked: keys, initial state (no floats,
concrete values only), getter and action expressions, assigned fields and
persistence options. All problems are reported, not just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil {
		return outputLoadError(formatter, loadErrors[0])
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	validationErrors := validateAll(loadResult, loadErrors, formatter)
	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, loadResult)
}

// validateAll collects load errors and runs schema validation on every
// compiled store. Each problem is tagged with the store it belongs to.
func validateAll(result *LoadResult, loadErrors []error, formatter *OutputFormatter) []CLIError {
	var all []CLIError

	for _, err := range loadErrors {
		e := cliErrorOf(err)
		if e.Field == "" {
			e.Field = "load"
		}
		all = append(all, e)
	}

	for _, spec := range result.Stores {
		formatter.VerboseLog("Validating store: %s", spec.Key)
		all = append(all, storeErrors(spec.Key, compiler.Validate(spec))...)
	}

	return all
}

// lineOf extracts the line number from a CUE position.
func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputLoadError reports a failure that stopped loading altogether.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Fail(loadErr.cliError())
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
	}
	_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return WrapExitError(ExitCommandError, ErrCodeGeneric, err)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result *LoadResult) error {
	keys := make([]string, len(result.Stores))
	for i, spec := range result.Stores {
		keys[i] = spec.Key
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Stores: keys})
	}

	fmt.Fprintf(formatter.Writer, "✓ All specs valid (%d store(s))\n", len(keys))
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []CLIError) error {
	if formatter.Format == "json" {
		if err := formatter.Report(false, "", ValidationResult{Valid: false, Errors: errs}, errs[0]); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Where(), err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidateSpecsDir validates all store specs in a directory.
// This is a helper function for external callers.
func ValidateSpecsDir(specsDir string) ([]CLIError, error) {
	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil {
		return nil, loadErrors[0]
	}

	silent := &OutputFormatter{Format: "text"}
	return validateAll(loadResult, loadErrors, silent), nil
}
