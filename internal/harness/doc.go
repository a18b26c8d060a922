// Package harness runs conformance scenarios against the bridge.
//
// A scenario runs one recipe through the real bridge and native registry,
// journals every call to an in-memory store, and checks the outcome.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: brighten
//	description: "linear lifts a black canvas"
//	recipes:
//	  - recipes/brighten.cue      # relative to the scenario file
//	run: brighten
//	input: { width: 4, height: 4, bands: 1, format: uchar, fill: [10] }
//	expect:
//	  - ref: $mean
//	    equals: 10
//	  - ref: $lit
//	    image: { width: 4, height: 4, format: float }
//	assertions:
//	  - type: trace_order
//	    operations: [black, linear, avg]
//	  - type: final_state
//	    table: calls
//	    where: { operation: avg }
//	    expect: { error_code: null }
//
// Instead of recipe files a scenario may list steps inline; they form a
// recipe named after the scenario. A failing step is expected with
// {step: id, error: CODE}.
//
// # Assertion Types
//
//   - trace_contains: an operation was called, optionally with matching options
//   - trace_order: operations were called in the given order
//   - trace_count: an operation was called exactly N times
//   - final_state: one journal row matches a where clause and has expected values
//
// # Deterministic Testing
//
// Journal IDs come from testutil.SequentialIDs (prefixed with the scenario
// name) and seq numbers from testutil.DeterministicClock, so the journal of
// a scenario is byte-identical across runs and can be compared against a
// golden file with RunWithGolden.
package harness
