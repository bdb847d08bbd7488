package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/composite/internal/catalog"
	"github.com/roach88/composite/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool               `json:"valid"`
	Types     []string           `json:"types"`
	FileCount int                `json:"file_count"`
	Errors    []string           `json:"errors,omitempty"`
	Warnings  []compiler.Warning `json:"warnings,omitempty"`
}

func (r ValidationResult) String() string {
	var b strings.Builder
	if r.Valid {
		fmt.Fprintf(&b, "✓ %d entity type(s) valid (%d file(s)): %s", len(r.Types), r.FileCount, strings.Join(r.Types, ", "))
	} else {
		fmt.Fprintf(&b, "✗ %d error(s)", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "\n  %s", e)
		}
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "\n  warning %s", w)
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [specs-dir]",
		Short: "Validate entity type specs",
		Long: `Compile and validate CUE entity type specs without touching a database.

Reports every error (unknown kinds, undeclared targets, reserved names) and
warnings such as composite cycles. The directory defaults to --specs.

Exit codes:
  0 - Specs are valid
  1 - Specs have errors
  2 - Command error (directory not found, no CUE files)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	cfg, _, err := loadConfig(opts, cmd)
	if err != nil {
		return report(f, ErrCodeInvalid, err)
	}
	dir := cfg.SpecsDir
	if len(args) == 1 {
		dir = args[0]
	}

	result, loadErrs := catalog.Load(dir, catalog.LoadModeCollectAll)
	if result == nil {
		code := ErrCodeGeneric
		var loadErr *catalog.LoadError
		if errors.As(loadErrs[0], &loadErr) {
			code = loadErr.Code
		}
		return f.Fail(ExitCommandError, code, "failed to load specs", loadErrs[0])
	}
	f.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, dir)

	out := ValidationResult{
		Valid:     len(loadErrs) == 0,
		Types:     []string{},
		FileCount: result.FileCount,
		Warnings:  result.Warnings,
	}
	for _, def := range result.Types {
		out.Types = append(out.Types, def.Name)
	}
	for _, e := range loadErrs {
		out.Errors = append(out.Errors, e.Error())
	}

	if !out.Valid {
		if f.Format == "json" {
			if err := f.Error(ErrCodeInvalid, "validation failed", out); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(f.Writer, out)
		}
		return reportedExit(ExitFailure, "validation failed")
	}
	return f.Success(out)
}
