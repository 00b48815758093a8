package engine

import (
	"context"
	"fmt"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/store"
)

// LogIssue is one integrity problem found in the operation log.
type LogIssue struct {
	Seq     int64
	ID      string
	Problem string
}

// LogReport summarises an operation log check.
type LogReport struct {
	Invocations int
	Completions int
	Committed   int
	Issues      []LogIssue
}

// OK reports whether the log passed every check.
func (r LogReport) OK() bool {
	return len(r.Issues) == 0
}

// VerifyLog re-derives every content-addressed ID in the log and checks
// that each invocation has a later completion. The schema already keeps
// completions unique per invocation.
func VerifyLog(ctx context.Context, st *store.Store) (LogReport, error) {
	invs, err := st.ReadAllInvocations(ctx)
	if err != nil {
		return LogReport{}, fmt.Errorf("verify log: %w", err)
	}
	comps, err := st.ReadAllCompletions(ctx)
	if err != nil {
		return LogReport{}, fmt.Errorf("verify log: %w", err)
	}

	report := LogReport{Invocations: len(invs), Completions: len(comps)}
	issue := func(seq int64, id, format string, args ...any) {
		report.Issues = append(report.Issues, LogIssue{Seq: seq, ID: id, Problem: fmt.Sprintf(format, args...)})
	}

	bySeq := make(map[int64]string, len(invs))
	invSeq := make(map[string]int64, len(invs))
	for _, inv := range invs {
		want, err := ir.InvocationID(inv.FlowToken, string(inv.ActionURI), inv.Signer, inv.Args, inv.Seq)
		if err != nil {
			return LogReport{}, fmt.Errorf("verify log: %w", err)
		}
		if want != inv.ID {
			issue(inv.Seq, inv.ID, "invocation id does not match content (want %s)", want)
		}
		if other, dup := bySeq[inv.Seq]; dup {
			issue(inv.Seq, inv.ID, "seq already used by invocation %s", other)
		}
		bySeq[inv.Seq] = inv.ID
		invSeq[inv.ID] = inv.Seq
	}

	completed := make(map[string]bool, len(comps))
	for _, comp := range comps {
		want, err := ir.CompletionID(comp.InvocationID, comp.OutputCase, comp.Result, comp.Seq)
		if err != nil {
			return LogReport{}, fmt.Errorf("verify log: %w", err)
		}
		if want != comp.ID {
			issue(comp.Seq, comp.ID, "completion id does not match content (want %s)", want)
		}
		if comp.Committed {
			report.Committed++
			if comp.OutputCase != ir.OutputSuccess {
				issue(comp.Seq, comp.ID, "committed completion has failure case %s", comp.OutputCase)
			}
		}
		seq, ok := invSeq[comp.InvocationID]
		switch {
		case !ok:
			issue(comp.Seq, comp.ID, "completion for unknown invocation %s", comp.InvocationID)
		case comp.Seq <= seq:
			issue(comp.Seq, comp.ID, "completion seq %d not after invocation seq %d", comp.Seq, seq)
		}
		completed[comp.InvocationID] = true
	}

	for _, inv := range invs {
		if !completed[inv.ID] {
			issue(inv.Seq, inv.ID, "invocation has no completion")
		}
	}

	return report, nil
}
