package testutil

// FixedFlowGenerator hands out the same flow token on every call, so every
// instruction of a scenario lands in one flow and golden traces are stable.
type FixedFlowGenerator struct {
	token string
}

// NewFixedFlowGenerator returns a generator for token, or for
// "test-flow-default" when token is empty.
func NewFixedFlowGenerator(token string) *FixedFlowGenerator {
	if token == "" {
		token = "test-flow-default"
	}
	return &FixedFlowGenerator{token: token}
}

// Generate implements engine.FlowTokenGenerator.
func (g *FixedFlowGenerator) Generate() string {
	return g.token
}
