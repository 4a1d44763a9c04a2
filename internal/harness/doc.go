// Package harness runs recurring-order simulations described in YAML.
//
// A scenario declares a token world (tokens, constant-product pools,
// account balances) and a sequence of steps: order registration and
// deletion, allowance approvals, clock advances, and keeper calls
// (check and upkeep). The harness drives a real engine through the steps
// with a manual clock and sequential run ids, so the same scenario always
// produces the same trace.
//
// Example scenario:
//
//	name: single_order
//	description: One funded order executes once
//	start_time: 1700000000
//	accounts: [alice]
//	tokens:
//	  - {symbol: WETH, decimals: 18, supply: "1000e18"}
//	  - {symbol: DAI, decimals: 18, supply: "1000000e18"}
//	pools:
//	  - {token_a: WETH, token_b: DAI, amount_a: "100e18", amount_b: "200000e18"}
//	balances:
//	  - {account: alice, token: WETH, amount: "10e18"}
//	steps:
//	  - register: {owner: alice, sell: WETH, buy: DAI, amount: "1e18", interval: 3600}
//	  - approve: {owner: alice, token: WETH, amount: "1e18"}
//	  - upkeep: {expect_needed: true}
//	assertions:
//	  - {type: balance, account: alice, token: WETH, amount: "9e18"}
//
// Traces and final state are serialized with ir.MarshalCanonical and
// compared against golden files with goldie.
//
// Account and token addresses are derived from their names, and trace
// events refer to them by name, so golden files contain no hashes.
//
// WithConfig builds the engine and keeper from a deployment configuration
// and WithClock swaps the manual clock for another one. Setup and Play
// split Run so a caller can keep driving the keeper after the steps.
package harness
