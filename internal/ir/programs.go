package ir

// Well-known program IDs. The values match the public Solana programs so
// addresses derived here agree with on-chain tooling.
var (
	SystemProgramID          = MustParsePubkey("11111111111111111111111111111111")
	TokenProgramID           = MustParsePubkey("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = MustParsePubkey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

	// DefaultTimelockProgramID is used when no program.id is configured.
	DefaultTimelockProgramID = MustParsePubkey("8LQG6U5AQKe9t97ogxMtggbr24QgUKNFz22qvVPzBYYe")
)
