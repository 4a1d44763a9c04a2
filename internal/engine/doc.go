// Package engine implements the Trickle recurring-order engine.
//
// The engine lets an owner register a standing "sell A for B" order with a
// fixed amount and a minimum interval, and lets any caller trigger execution
// of every order that has become due.
//
// ARCHITECTURE:
//
// Serialized mutations:
// Registration, deletion and PerformUpkeep take the engine's write lock, so
// they are atomic and totally ordered relative to one another. CheckUpkeep
// and the query methods take the read lock and observe a single logical
// instant.
//
// Upkeep protocol:
//  1. CheckUpkeep walks every active order (read-only) and encodes the due
//     ones into an opaque performData payload.
//  2. PerformUpkeep decodes the payload and processes each entry
//     independently: pull the sell amount from the owner, swap it through
//     the exchange adapter, and advance the order's last execution.
//
// The payload is advisory. Between the two calls orders may be deleted,
// overwritten or already executed, so PerformUpkeep re-fetches each order
// and re-checks that it is still due before moving any funds.
//
// Failure isolation:
// An owner whose balance or allowance is insufficient is skipped without
// any state change; the rest of the batch continues and the order stays due
// for the next cycle. Input errors on registration (InvalidAmount,
// IntervalTooShort, NotFound) fail loudly and abort only that call.
package engine
