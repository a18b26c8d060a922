package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pixbridge/internal/ir"
)

// TraceSnapshot captures the complete journal of a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to an IRObject for canonical JSON
// serialization. Error messages are left out so that rewording one does not
// churn golden files; the code is kept.
func (s *TraceSnapshot) toCanonicalMap() ir.IRObject {
	traceList := make(ir.IRArray, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := ir.IRObject{
			"seq":       ir.IRInt(event.Seq),
			"id":        ir.IRString(event.ID),
			"operation": ir.IRString(event.Operation),
			"args":      event.Args,
		}
		if event.Source != "" {
			eventMap["source"] = ir.IRString(event.Source)
		}
		if event.ErrorCode != "" {
			eventMap["error_code"] = ir.IRString(event.ErrorCode)
		} else {
			eventMap["result"] = event.Result
		}
		traceList[i] = eventMap
	}

	return ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"trace":         traceList,
	}
}

// MarshalTrace renders a result's trace as canonical JSON.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: scenarioName, Trace: result.Trace}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
