package harness

import "github.com/roach88/timelock/internal/ir"

// TraceEvent is one invocation or completion in a scenario trace.
type TraceEvent struct {
	Type       string      `json:"type"` // "invocation" or "completion"
	ActionURI  string      `json:"action_uri,omitempty"`
	Signer     string      `json:"signer,omitempty"` // identity name, not the key
	Args       ir.IRObject `json:"args,omitempty"`
	OutputCase string      `json:"output_case,omitempty"`
	Result     ir.IRObject `json:"result,omitempty"`
	Committed  bool        `json:"committed,omitempty"`
	Seq        int64       `json:"seq"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds the flow's invocations and completions in seq order.
	// Setup does not appear.
	Trace []TraceEvent `json:"trace"`

	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace appends an invocation.
func (r *Result) AddInvocationTrace(actionURI, signer string, args ir.IRObject, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:      "invocation",
		ActionURI: actionURI,
		Signer:    signer,
		Args:      args,
		Seq:       seq,
	})
}

// AddCompletionTrace appends a completion.
func (r *Result) AddCompletionTrace(outputCase string, result ir.IRObject, seq int64, committed bool) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:       "completion",
		OutputCase: outputCase,
		Result:     result,
		Committed:  committed,
		Seq:        seq,
	})
}
