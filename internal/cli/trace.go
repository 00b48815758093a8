package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/timelock/internal/engine"
	"github.com/roach88/timelock/internal/ir"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	FlowToken string
	Action    string
	Verify    bool
}

// TraceEvent represents a single event in the trace timeline.
type TraceEvent struct {
	Seq        int64                  `json:"seq"`
	Type       string                 `json:"type"` // "invocation" or "completion"
	ID         string                 `json:"id"`
	FlowToken  string                 `json:"flow_token,omitempty"`
	ActionURI  string                 `json:"action_uri,omitempty"`
	Signer     string                 `json:"signer,omitempty"`
	Args       map[string]interface{} `json:"args,omitempty"`
	OutputCase string                 `json:"output_case,omitempty"`
	Committed  bool                   `json:"committed,omitempty"`
	Result     map[string]interface{} `json:"result,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	FlowToken    string            `json:"flow_token,omitempty"`
	Timeline     []TraceEvent      `json:"timeline"`
	Stats        TraceStats        `json:"stats"`
	Verification *VerificationInfo `json:"verification,omitempty"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Invocations int `json:"invocations"`
	Completions int `json:"completions"`
	Committed   int `json:"committed"`
	Rejected    int `json:"rejected"`
}

// VerificationInfo is the result of checking the whole operation log.
type VerificationInfo struct {
	OK     bool              `json:"ok"`
	Issues []engine.LogIssue `json:"issues,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the operation log",
		Long: `Show recorded invocations and completions in seq order.

Committed completions changed the ledger; rejected ones were recorded
after their transaction rolled back.

With --verify, every content-addressed ID in the log is recomputed and
each invocation is checked for exactly one later completion. Exits 1 if
any check fails.

Examples:
  timelock trace
  timelock trace --flow 0190f3a2-...
  timelock trace --action timelock.withdraw_native --format json
  timelock trace --verify`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(opts.RootOptions, cmd, func(ctx context.Context, e *env) error {
				return runTrace(ctx, opts, e, cmd)
			})
		},
	}

	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "only events of this flow")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to specific action URI")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "check the integrity of the whole log")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, e *env, cmd *cobra.Command) error {
	var (
		invs  []ir.Invocation
		comps []ir.Completion
		err   error
	)
	if opts.FlowToken != "" {
		invs, comps, err = e.store.ReadFlow(ctx, opts.FlowToken)
	} else {
		invs, err = e.store.ReadAllInvocations(ctx)
		if err == nil {
			comps, err = e.store.ReadAllCompletions(ctx)
		}
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read operation log", err)
	}

	result := TraceResult{
		FlowToken: opts.FlowToken,
		Timeline:  buildTimeline(invs, comps, opts.Action),
	}
	for _, ev := range result.Timeline {
		result.Stats.TotalEvents++
		switch {
		case ev.Type == "invocation":
			result.Stats.Invocations++
		case ev.Committed:
			result.Stats.Completions++
			result.Stats.Committed++
		default:
			result.Stats.Completions++
			result.Stats.Rejected++
		}
	}

	if opts.Verify {
		report, err := engine.VerifyLog(ctx, e.store)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to verify log", err)
		}
		result.Verification = &VerificationInfo{OK: report.OK(), Issues: report.Issues}
	}

	if opts.Format == "json" {
		err = outputTraceJSON(cmd, result)
	} else {
		err = outputTraceText(cmd, result, opts.Verbose)
	}
	if err != nil {
		return err
	}

	if result.Verification != nil && !result.Verification.OK {
		return NewExitError(ExitFailure, fmt.Sprintf("operation log has %d issue(s)", len(result.Verification.Issues)))
	}
	return nil
}

// buildTimeline merges invocations and completions by seq.
// When actionFilter is set, only includes invocations matching that action
// and their corresponding completions.
func buildTimeline(invs []ir.Invocation, comps []ir.Completion, actionFilter string) []TraceEvent {
	timeline := []TraceEvent{}
	matched := make(map[string]bool)

	for _, inv := range invs {
		if actionFilter != "" && string(inv.ActionURI) != actionFilter {
			continue
		}
		matched[inv.ID] = true
		timeline = append(timeline, TraceEvent{
			Seq:       inv.Seq,
			Type:      "invocation",
			ID:        inv.ID,
			FlowToken: inv.FlowToken,
			ActionURI: string(inv.ActionURI),
			Signer:    inv.Signer,
			Args:      irObjectToMap(inv.Args),
		})
	}
	for _, comp := range comps {
		if !matched[comp.InvocationID] {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Seq:        comp.Seq,
			Type:       "completion",
			ID:         comp.ID,
			OutputCase: comp.OutputCase,
			Committed:  comp.Committed,
			Result:     irObjectToMap(comp.Result),
		})
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].Seq < timeline[j].Seq
	})
	return timeline
}

// irObjectToMap converts an ir.IRObject to a plain map.
func irObjectToMap(obj ir.IRObject) map[string]interface{} {
	if obj == nil {
		return nil
	}

	result := make(map[string]interface{})
	for k, v := range obj {
		result[k] = irValueToInterface(v)
	}
	return result
}

// irValueToInterface converts an ir.IRValue to a plain interface{}.
func irValueToInterface(v ir.IRValue) interface{} {
	switch val := v.(type) {
	case ir.IRString:
		return string(val)
	case ir.IRInt:
		return int64(val)
	case ir.IRBool:
		return bool(val)
	case ir.IRArray:
		result := make([]interface{}, len(val))
		for i, elem := range val {
			result[i] = irValueToInterface(elem)
		}
		return result
	case ir.IRObject:
		return irObjectToMap(val)
	default:
		return nil
	}
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.FlowToken != "" {
		fmt.Fprintf(w, "Trace for Flow: %s\n", result.FlowToken)
	} else {
		fmt.Fprintln(w, "Operation log")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, event := range result.Timeline {
		formatTimelineEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Invocations:  %d\n", result.Stats.Invocations)
	fmt.Fprintf(w, "  Committed:    %d\n", result.Stats.Committed)
	fmt.Fprintf(w, "  Rejected:     %d\n", result.Stats.Rejected)

	if v := result.Verification; v != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Verification ===")
		if v.OK {
			fmt.Fprintln(w, "  OK")
		}
		for _, issue := range v.Issues {
			fmt.Fprintf(w, "  [%d] %s: %s\n", issue.Seq, truncateID(issue.ID), issue.Problem)
		}
	}

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	switch event.Type {
	case "invocation":
		fmt.Fprintf(w, "  [%d] INV %s by %s\n", event.Seq, event.ActionURI, truncateID(event.Signer))
		if verbose && len(event.Args) > 0 {
			fmt.Fprintf(w, "       Args: %s\n", formatArgs(event.Args))
		}
		if verbose {
			fmt.Fprintf(w, "       Flow: %s\n", event.FlowToken)
			fmt.Fprintf(w, "       ID: %s\n", truncateID(event.ID))
		}

	case "completion":
		status := "committed"
		if !event.Committed {
			status = "rejected"
		}
		fmt.Fprintf(w, "  [%d] COMP %s (%s)\n", event.Seq, event.OutputCase, status)
		if verbose && len(event.Result) > 0 {
			fmt.Fprintf(w, "       Result: %s\n", formatArgs(event.Result))
		}
		if verbose {
			fmt.Fprintf(w, "       ID: %s\n", truncateID(event.ID))
		}
	}
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case map[string]interface{}:
		return formatArgs(val)
	case []interface{}:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
