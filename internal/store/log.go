package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/timelock/internal/ir"
)

const invocationColumns = `id, flow_token, action_uri, args, signer, seq, engine_version, ir_version`

const completionColumns = `c.id, c.invocation_id, c.output_case, c.result, c.seq, c.committed`

// WriteInvocation inserts an invocation record. Duplicate IDs are ignored.
func (t *Tx) WriteInvocation(ctx context.Context, inv ir.Invocation) error {
	argsJSON, err := marshalObject("args", inv.Args)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO invocations (`+invocationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		inv.ID,
		inv.FlowToken,
		string(inv.ActionURI),
		argsJSON,
		inv.Signer,
		inv.Seq,
		inv.EngineVersion,
		inv.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write invocation: %w", err)
	}
	return nil
}

// WriteCompletion inserts a completion record. Each invocation has at most
// one completion; a second write for the same invocation is ignored.
// The referenced invocation must already exist.
func (t *Tx) WriteCompletion(ctx context.Context, comp ir.Completion) error {
	resultJSON, err := marshalObject("result", comp.Result)
	if err != nil {
		return fmt.Errorf("write completion: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO completions (id, invocation_id, output_case, result, seq, committed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		comp.ID,
		comp.InvocationID,
		comp.OutputCase,
		resultJSON,
		comp.Seq,
		boolToInt(comp.Committed),
	)
	if err != nil {
		return fmt.Errorf("write completion: %w", err)
	}
	return nil
}

// MaxSeq returns the highest seq recorded in the log, or 0 for an empty log.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM (
			SELECT seq FROM invocations
			UNION ALL
			SELECT seq FROM completions
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}

// ReadFlow returns the invocations and completions for a flow token,
// ordered by seq ASC, id ASC COLLATE BINARY. Empty slices, never nil.
func (s *Store) ReadFlow(ctx context.Context, flowToken string) ([]ir.Invocation, []ir.Completion, error) {
	invocations, err := s.queryInvocations(ctx, `
		SELECT `+invocationColumns+` FROM invocations
		WHERE flow_token = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, flowToken)
	if err != nil {
		return nil, nil, err
	}

	completions, err := s.queryCompletions(ctx, `
		SELECT `+completionColumns+` FROM completions c
		JOIN invocations i ON c.invocation_id = i.id
		WHERE i.flow_token = ?
		ORDER BY c.seq ASC, c.id COLLATE BINARY ASC
	`, flowToken)
	if err != nil {
		return nil, nil, err
	}

	return invocations, completions, nil
}

// ReadAllInvocations returns the whole invocation log in seq order.
func (s *Store) ReadAllInvocations(ctx context.Context) ([]ir.Invocation, error) {
	return s.queryInvocations(ctx, `
		SELECT `+invocationColumns+` FROM invocations
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// ReadAllCompletions returns the whole completion log in seq order.
func (s *Store) ReadAllCompletions(ctx context.Context) ([]ir.Completion, error) {
	return s.queryCompletions(ctx, `
		SELECT `+completionColumns+` FROM completions c
		ORDER BY c.seq ASC, c.id COLLATE BINARY ASC
	`)
}

// ReadCompletionFor returns the completion of an invocation.
// Returns ErrNotFound if the invocation has none.
func (s *Store) ReadCompletionFor(ctx context.Context, invocationID string) (ir.Completion, error) {
	comps, err := s.queryCompletions(ctx, `
		SELECT `+completionColumns+` FROM completions c
		WHERE c.invocation_id = ?
	`, invocationID)
	if err != nil {
		return ir.Completion{}, err
	}
	if len(comps) == 0 {
		return ir.Completion{}, fmt.Errorf("completion for %s: %w", invocationID, ErrNotFound)
	}
	return comps[0], nil
}

func (s *Store) queryInvocations(ctx context.Context, query string, args ...any) ([]ir.Invocation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	invocations := []ir.Invocation{}
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return invocations, nil
}

func (s *Store) queryCompletions(ctx context.Context, query string, args ...any) ([]ir.Completion, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query completions: %w", err)
	}
	defer rows.Close()

	completions := []ir.Completion{}
	for rows.Next() {
		comp, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		completions = append(completions, comp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}
	return completions, nil
}

func scanInvocation(rows *sql.Rows) (ir.Invocation, error) {
	var (
		inv       ir.Invocation
		actionURI string
		argsJSON  string
	)
	if err := rows.Scan(
		&inv.ID, &inv.FlowToken, &actionURI, &argsJSON, &inv.Signer,
		&inv.Seq, &inv.EngineVersion, &inv.IRVersion,
	); err != nil {
		return ir.Invocation{}, fmt.Errorf("scan invocation: %w", err)
	}

	inv.ActionURI = ir.ActionRef(actionURI)
	args, err := unmarshalObject("args", argsJSON)
	if err != nil {
		return ir.Invocation{}, err
	}
	inv.Args = args
	return inv, nil
}

func scanCompletion(rows *sql.Rows) (ir.Completion, error) {
	var (
		comp       ir.Completion
		resultJSON string
		committed  int
	)
	if err := rows.Scan(
		&comp.ID, &comp.InvocationID, &comp.OutputCase, &resultJSON, &comp.Seq, &committed,
	); err != nil {
		return ir.Completion{}, fmt.Errorf("scan completion: %w", err)
	}

	result, err := unmarshalObject("result", resultJSON)
	if err != nil {
		return ir.Completion{}, err
	}
	comp.Result = result
	comp.Committed = committed != 0
	return comp, nil
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
