// Package harness runs timelock conformance scenarios.
//
// A scenario is a YAML file that seeds a fresh in-memory ledger, drives
// the real engine through a flow of signed instructions at chosen ledger
// times, then checks the recorded trace and the final balances.
//
// # Scenario Format
//
//	name: scenario_b_token_round_trip
//	description: "Only the depositor can withdraw a matured token lock"
//	start_time: 1700000000
//	flow_token: scenario-b
//	accounts:
//	  - name: alice
//	    lamports: 100000000
//	  - name: issuer
//	    lamports: 100000000
//	mints:
//	  - name: m
//	    authority: issuer
//	    holders:
//	      - owner: alice
//	        amount: 500
//	flow:
//	  - invoke: timelock.initialize_lock_spl
//	    signer: alice
//	    args: { amount: 500, unlock_time: 1700000010, mint: $m }
//	  - at: 1700000020
//	    invoke: timelock.withdraw_spl
//	    signer: alice
//	    args: { lock: "$lock:alice:token" }
//	    expect:
//	      case: Success
//	      result: { released: 500 }
//	assertions:
//	  - type: balance
//	    account: $alice
//	    mint: $m
//	    amount: 500
//	  - type: lock_state
//	    depositor: alice
//	    kind: token
//	    state: absent
//
// # References
//
// String values starting with $ are resolved before use:
//
//   - $name: the public key of the named identity, or the address of the named mint
//   - $lock:name:kind: the custody address of name's lock of that kind
//
// Identities are derived from their names with testutil.NewKeypair, so a
// scenario is reproducible byte for byte.
//
// # Assertion Types
//
//   - trace_contains: an invocation of action, optionally by signer, with matching args
//   - trace_order: actions appear in the given order, not necessarily adjacent
//   - trace_count: action was invoked exactly count times
//   - balance: lamports of account, or token amount of its associated holding account for mint
//   - lock_state: registered, funded or absent
//
// A flow step without expect must succeed.
package harness
