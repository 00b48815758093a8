package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/timelock/internal/ir"
)

// GoldenDir is where golden traces live, relative to the package under test.
const GoldenDir = "testdata/scenarios/golden"

// TraceSnapshot captures the trace of a scenario execution.
// Args, results and addresses are left out: they are checked by expect
// clauses and assertions, and the snapshot pins the sequence of outcomes.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	FlowToken    string       `json:"flow_token,omitempty"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"type": event.Type,
			"seq":  event.Seq,
		}
		switch event.Type {
		case "invocation":
			eventMap["action_uri"] = event.ActionURI
			eventMap["signer"] = event.Signer
		case "completion":
			eventMap["output_case"] = event.OutputCase
			eventMap["committed"] = event.Committed
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
	if s.FlowToken != "" {
		result["flow_token"] = s.FlowToken
	}
	return result
}

// Snapshot renders a result's trace as canonical JSON.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	s := TraceSnapshot{
		ScenarioName: scenario.Name,
		FlowToken:    scenario.FlowToken,
		Trace:        result.Trace,
	}
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// GoldenPath returns the golden file for a scenario file:
// <dir>/golden/<base>.golden.
func GoldenPath(scenarioFile string) string {
	dir, file := filepath.Split(scenarioFile)
	base := strings.TrimSuffix(file, filepath.Ext(file))
	return filepath.Join(dir, "golden", base+".golden")
}

// CompareGolden compares a snapshot with the golden file at path.
func CompareGolden(path string, snapshot []byte) error {
	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), bytes.TrimSpace(snapshot)) {
		return fmt.Errorf("trace differs from %s:\n  want: %s\n  got:  %s", path, bytes.TrimSpace(want), snapshot)
	}
	return nil
}

// WriteGolden writes a snapshot to path, creating its directory.
func WriteGolden(path string, snapshot []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, snapshot, 0o644)
}

// RunWithGolden executes a scenario, fails t if any expectation failed,
// and compares the trace against GoldenDir/<scenario.Name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		t.Errorf("scenario %s failed:\n%s", scenario.Name, strings.Join(result.Errors, "\n"))
	}
	return AssertGolden(t, scenario, result)
}

// AssertGolden compares an existing result's trace against its golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)
	return nil
}
