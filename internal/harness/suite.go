package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ScenarioNotFoundError is returned when a scenario path does not exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// FindScenarios returns the scenario files at path: the file itself, or
// every .yaml and .yml file below a directory, sorted.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ext := filepath.Ext(p); ext == ".yaml" || ext == ".yml" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning %s: %w", path, err)
	}
	sort.Strings(files)
	return files, nil
}

// SuiteResult summarises a run of several scenario files.
type SuiteResult struct {
	Total   int               `json:"total"`
	Passed  int               `json:"passed"`
	Failed  int               `json:"failed"`
	Results []ScenarioOutcome `json:"results"`
}

// ScenarioOutcome is the result of one scenario file.
type ScenarioOutcome struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
	Result *Result  `json:"-"`
}

// RunSuite loads and runs every scenario file. A file that fails to load or
// set up counts as a failed scenario; RunSuite itself only fails on a
// cancelled context.
func RunSuite(ctx context.Context, paths []string, opts ...Option) (*SuiteResult, error) {
	suite := &SuiteResult{}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return suite, err
		}
		suite.Total++
		outcome := ScenarioOutcome{Path: path}

		scenario, err := LoadScenario(path)
		if err != nil {
			outcome.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
			suite.record(outcome)
			continue
		}
		outcome.Name = scenario.Name

		result, err := Run(ctx, scenario, opts...)
		if err != nil {
			outcome.Errors = []string{fmt.Sprintf("scenario execution failed: %v", err)}
			suite.record(outcome)
			continue
		}

		outcome.Pass = result.Pass
		outcome.Errors = result.Errors
		outcome.Result = result
		suite.record(outcome)
	}
	return suite, nil
}

func (s *SuiteResult) record(o ScenarioOutcome) {
	if o.Pass {
		s.Passed++
	} else {
		s.Failed++
	}
	s.Results = append(s.Results, o)
}
