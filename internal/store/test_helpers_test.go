package store

import (
	"context"
	"crypto/sha256"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/timelock/internal/ir"
)

// createTestStore creates a file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// testKey returns a deterministic pubkey derived from name.
func testKey(name string) ir.Pubkey {
	return ir.Pubkey(sha256.Sum256([]byte(name)))
}

func createTestInvocation(id, flowToken, actionURI string, seq int64) ir.Invocation {
	return ir.Invocation{
		ID:            id,
		FlowToken:     flowToken,
		ActionURI:     ir.ActionRef(actionURI),
		Args:          ir.IRObject{},
		Signer:        testKey("alice").String(),
		Seq:           seq,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}

func createTestCompletion(id, invocationID, outputCase string, seq int64) ir.Completion {
	return ir.Completion{
		ID:           id,
		InvocationID: invocationID,
		OutputCase:   outputCase,
		Result:       ir.IRObject{},
		Seq:          seq,
		Committed:    true,
	}
}

// mustTx runs fn in a transaction and fails the test on error.
func mustTx(t *testing.T, s *Store, fn func(tx *Tx) error) {
	t.Helper()
	require.NoError(t, s.InTx(context.Background(), fn))
}
