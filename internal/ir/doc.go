// Package ir provides the core data types shared by every Trickle package.
//
// This package contains type definitions, deterministic key derivation and
// the performData wire codec. All other internal packages import ir; ir
// imports nothing internal.
//
// Key design constraints:
//   - Keys are pure functions of their inputs (keccak256 over ABI-encoded
//     arguments), never sequence counters or random values
//   - Amounts are *big.Int in the sell token's smallest unit
//   - Timestamps and intervals are unix seconds; 0 means "never"
package ir
