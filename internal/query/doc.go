// Package query implements the incremental, demand-driven compilation
// engine at the center of the weft toolchain.
//
// The engine decides, on every rebuild, the minimal set of pipeline stages
// to re-execute while guaranteeing that a stale result is never served.
// It is a correctness-critical caching problem layered on a compiler
// pipeline, not glue code.
//
// ARCHITECTURE:
//
// Queries and keys:
// Every unit of compilation work (read a source file, tokenize it, parse,
// typecheck, borrow-check, lower to HIR, build MIR, emit a compilation
// unit) is a query identified by a Key: (stage, unit, options digest).
// Equal keys are the same query. The eight stages are a closed enum; the
// dependency shape between them is fixed and exhaustively known.
//
// Forcing:
// Context.Force resolves a query: session memo hit, green reuse, or
// provider execution. While a provider runs, every query it forces is
// recorded on a per-worker dependency tracker stack, yielding the ordered,
// deduplicated dependency list stored in the session entry. Re-entrant
// forcing of a key already on the stack is a fatal cycle error reported
// with the full stack as a trace.
//
// Green checking:
// Before running a provider, the engine walks the query's dependency
// subtree against the previous session's table (see green.go) using stored
// fingerprints, freshly measured external digests, and a per-session color
// map. Green queries reuse the previous entry verbatim — fingerprints,
// dependency list, and artifact reference are copied, not re-derived.
//
// The guiding rule for failures: anything that threatens correctness (a
// stale result served as fresh) is never silently tolerated; anything that
// only threatens performance (a missing or unreadable cache, a reclaimed
// artifact) degrades gracefully to recomputation.
//
// CONCURRENCY:
//
// Evaluation is single-threaded cooperative within one force call tree.
// Independent top-level units may be evaluated by a pool of workers, each
// with its own Run; the memo table serializes concurrent forces of the
// same key behind a per-key completion event so providers execute at most
// once per key per session. There is no cancellation mid-query: a provider
// either completes or the whole build aborts.
package query
