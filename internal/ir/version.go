package ir

const (
	// IRVersion is the operation-log schema version.
	IRVersion = "1"

	// EngineVersion is stamped on every invocation record.
	EngineVersion = "0.1.0"
)
