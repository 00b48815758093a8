package testutil

import "sync"

// ManualOracle is a ledger time oracle that only moves when told to.
// It satisfies ledger.Oracle.
type ManualOracle struct {
	mu  sync.Mutex
	now int64
}

// NewManualOracle returns an oracle reading start (unix seconds).
func NewManualOracle(start int64) *ManualOracle {
	return &ManualOracle{now: start}
}

// Now returns the current oracle reading.
func (o *ManualOracle) Now() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

// Set moves the oracle to t. Moving backwards is allowed; ledger time is
// whatever the oracle says.
func (o *ManualOracle) Set(t int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now = t
}

// Advance moves the oracle forward by d seconds and returns the new time.
func (o *ManualOracle) Advance(d int64) int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now += d
	return o.now
}
