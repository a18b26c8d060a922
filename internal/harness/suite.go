package harness

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// SuiteResult summarizes a run over many scenario files.
type SuiteResult struct {
	TotalScenarios int                `json:"total_scenarios"`
	Passed         int                `json:"passed"`
	Failed         int                `json:"failed"`
	Failures       []ScenarioFailure  `json:"failures,omitempty"`
	Results        map[string]*Result `json:"-"`
}

// ScenarioFailure represents a scenario that could not be loaded or run,
// or whose checks failed.
type ScenarioFailure struct {
	ScenarioPath string   `json:"scenario_path"`
	Scenario     string   `json:"scenario,omitempty"`
	Error        string   `json:"error"`
	Details      []string `json:"details,omitempty"`
}

// FindScenarios returns the .yaml and .yml files under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// RunSuite loads and runs every scenario file. A scenario that fails to
// load or run counts as failed; the suite keeps going.
func RunSuite(ctx context.Context, paths []string) *SuiteResult {
	suite := &SuiteResult{Results: make(map[string]*Result, len(paths))}

	for _, path := range paths {
		suite.TotalScenarios++

		scenario, err := LoadScenario(path)
		if err != nil {
			suite.fail(ScenarioFailure{
				ScenarioPath: path,
				Error:        fmt.Sprintf("failed to load scenario: %v", err),
			})
			continue
		}

		result, err := RunContext(ctx, scenario)
		if err != nil {
			suite.fail(ScenarioFailure{
				ScenarioPath: path,
				Scenario:     scenario.Name,
				Error:        fmt.Sprintf("scenario execution failed: %v", err),
			})
			continue
		}
		suite.Results[path] = result

		if !result.Pass {
			suite.fail(ScenarioFailure{
				ScenarioPath: path,
				Scenario:     scenario.Name,
				Error:        "scenario checks failed",
				Details:      result.Errors,
			})
			continue
		}
		suite.Passed++
	}
	return suite
}

func (s *SuiteResult) fail(f ScenarioFailure) {
	s.Failed++
	s.Failures = append(s.Failures, f)
}
