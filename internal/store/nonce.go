package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/timelock/internal/ir"
)

// SignerNonce returns the highest nonce consumed by signer, or 0 if the
// signer has never had an instruction accepted.
func (t *Tx) SignerNonce(ctx context.Context, signer ir.Pubkey) (int64, error) {
	return signerNonce(ctx, t.tx, signer)
}

// AdvanceSignerNonce marks nonce as consumed by signer. The stored value
// never decreases.
func (t *Tx) AdvanceSignerNonce(ctx context.Context, signer ir.Pubkey, nonce int64) error {
	if nonce <= 0 {
		return fmt.Errorf("advance nonce %s: nonce must be positive, got %d", signer, nonce)
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO signer_nonces (signer, nonce) VALUES (?, ?)
		ON CONFLICT(signer) DO UPDATE SET nonce = MAX(nonce, excluded.nonce)
	`, signer.String(), nonce)
	if err != nil {
		return fmt.Errorf("advance nonce %s: %w", signer, err)
	}
	return nil
}

// SignerNonce reads the highest consumed nonce outside a transaction.
// Clients sign their next instruction with this value plus one.
func (s *Store) SignerNonce(ctx context.Context, signer ir.Pubkey) (int64, error) {
	return signerNonce(ctx, s.db, signer)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func signerNonce(ctx context.Context, q rowQuerier, signer ir.Pubkey) (int64, error) {
	var nonce int64
	err := q.QueryRowContext(ctx, `SELECT nonce FROM signer_nonces WHERE signer = ?`, signer.String()).Scan(&nonce)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("signer nonce %s: %w", signer, err)
	}
	return nonce, nil
}
