package ledger

// AccountStorageOverhead is the fixed per-account size charged for rent on
// top of the account's data.
const AccountStorageOverhead = 128

// HoldingAccountSize is the data size charged for a token holding account.
const HoldingAccountSize = 165

// Rent holds the rent-exemption parameters.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  uint64 // Years of rent an account must hold up front
}

// DefaultRent returns the parameters of the reference network.
func DefaultRent() Rent {
	return Rent{LamportsPerByteYear: 3480, ExemptionThreshold: 2}
}

// MinimumBalance returns the balance an account of dataLen bytes must hold
// to be exempt from rent.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	return uint64(AccountStorageOverhead+dataLen) * r.LamportsPerByteYear * r.ExemptionThreshold
}
