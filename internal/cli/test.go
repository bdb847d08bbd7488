package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/composite/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern on the file name)
	Trace  bool   // print each scenario's trace
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string               `json:"name"`
	Path   string               `json:"path"`
	Pass   bool                 `json:"pass"`
	Errors []string             `json:"errors,omitempty"`
	Trace  []harness.TraceEvent `json:"trace,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-file-or-dir>",
		Short: "Run delete scenarios",
		Long: `Run YAML delete scenarios, each against a fresh in-memory database.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  composite test ./scenarios
  composite test ./scenarios --filter "shared_*"
  composite test ./scenarios/revision.yaml --trace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "include each scenario's deletion trace")

	return cmd
}

func runTests(opts *TestOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	_, logger, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return report(f, ErrCodeInvalid, err)
	}

	files, err := harness.FindScenarios(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, "failed to find scenarios", err)
	}
	files, err = filterScenarios(files, opts.Filter)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalid, "invalid filter pattern", err)
	}

	suite, err := harness.RunSuite(cmd.Context(), files, harness.WithLogger(logger))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "scenario run interrupted", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(suite.Results)),
		Passed:    suite.Passed,
		Failed:    suite.Failed,
		Total:     suite.Total,
	}
	for _, o := range suite.Results {
		sr := ScenarioResult{Name: o.Name, Path: o.Path, Pass: o.Pass, Errors: o.Errors}
		if sr.Name == "" {
			sr.Name = filepath.Base(o.Path)
		}
		if opts.Trace && o.Result != nil {
			sr.Trace = o.Result.Trace
		}
		result.Scenarios = append(result.Scenarios, sr)
	}

	if f.Format == "text" {
		writeTestText(f, result)
	}
	if result.Failed > 0 {
		msg := fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total)
		if f.Format == "json" {
			if err := f.Error(ErrCodeTestsFailed, msg, result); err != nil {
				return err
			}
		}
		return reportedExit(ExitFailure, msg)
	}
	if f.Format == "json" {
		return f.Success(result)
	}
	return nil
}

// filterScenarios keeps files whose base name without extension matches
// the glob pattern.
func filterScenarios(files []string, pattern string) ([]string, error) {
	if pattern == "" {
		return files, nil
	}
	var out []string
	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, file)
		}
	}
	return out, nil
}

func writeTestText(f *OutputFormatter, result TestResult) {
	w := f.Writer
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}

	for _, s := range result.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
		} else {
			fmt.Fprintf(w, "✗ %s\n", s.Name)
			for _, e := range s.Errors {
				fmt.Fprintf(w, "  %s\n", strings.TrimRight(e, "\n"))
			}
		}
		for _, ev := range s.Trace {
			fmt.Fprintf(w, "    [%d] %s %s", ev.Seq, ev.Type, ev.Entity)
			if ev.Field != "" {
				fmt.Fprintf(w, ".%s", ev.Field)
			}
			if ev.FlowToken != "" {
				fmt.Fprintf(w, " (%s)", ev.FlowToken)
			}
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
