// Package store provides SQLite-backed durable storage for recurring orders.
//
// The store holds three tables:
//   - token_pairs: (sell, buy) token pairs keyed by their keccak hash
//   - orders: one row per active order keyed by its order hash
//   - executions: append-only log of successful executions
//
// # Indices
//
// The reverse indices of the order store are derived from the orders table
// rather than kept as separate tables, so a deleted order disappears from
// all of them in the same statement:
//   - orders by owner: SELECT token_pair_hash ... WHERE owner = ?
//   - order by owner and pair: WHERE owner = ? AND token_pair_hash = ?
//   - all active orders: the whole table
//
// Every listing is ordered by seq, the position assigned when an order hash
// was first inserted. Overwriting an order keeps its seq.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Amounts are stored as base-10 text because uint256 values do not fit in
// SQLite integers.
package store
