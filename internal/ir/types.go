package ir

// ActionRef names a program operation, e.g. "timelock.withdraw_native".
type ActionRef string

// Invocation is the log record of a signed instruction as it was received.
type Invocation struct {
	ID            string    `json:"id"` // Content-addressed hash
	FlowToken     string    `json:"flow_token"`
	ActionURI     ActionRef `json:"action_uri"`
	Args          IRObject  `json:"args"`
	Signer        string    `json:"signer"` // base58, empty for read-only operations
	Seq           int64     `json:"seq"`
	EngineVersion string    `json:"engine_version"`
	IRVersion     string    `json:"ir_version"`
}

// Completion is the log record of an instruction's outcome.
// OutputCase is "Success" or one of the error codes.
type Completion struct {
	ID           string   `json:"id"`
	InvocationID string   `json:"invocation_id"`
	OutputCase   string   `json:"output_case"`
	Result       IRObject `json:"result"`
	Seq          int64    `json:"seq"`
	// Committed is false when the instruction was rolled back and the
	// completion was written afterwards as an audit entry.
	Committed bool `json:"committed"`
}

// OutputSuccess is the output case of every successful completion.
const OutputSuccess = "Success"
