// Package lang implements the compilation stages for weft source units:
// preprocessing, lexing, parsing, typechecking, the ownership check, the
// two IR lowerings, and code emission. Each stage is exposed twice: as a
// plain function over its inputs, and as a query provider registered with
// the engine so stage results are fingerprinted, cached, and recomputed
// only when their inputs change.
//
// The fingerprint rules carry the incrementality story. ReadSource
// digests preprocessed text, so edits compiled away by #when blocks are
// invisible downstream. TypecheckModule digests interfaces only, so a
// body edit in one unit never recompiles its importers. CodegenUnit
// digests the emitted IR itself.
package lang
