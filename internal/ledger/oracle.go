package ledger

import (
	"time"
)

// Oracle is the ledger's source of time. Programs never see
// caller-supplied timestamps; they see the oracle reading taken when the
// transaction began.
type Oracle interface {
	// Now returns the current ledger time in whole seconds since the Unix epoch.
	Now() int64
}

// SystemOracle reads the wall clock.
type SystemOracle struct{}

// Now implements Oracle.
func (SystemOracle) Now() int64 {
	return time.Now().Unix()
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func() int64

// Now implements Oracle.
func (f OracleFunc) Now() int64 {
	return f()
}
