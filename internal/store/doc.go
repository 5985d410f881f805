// Package store provides the engine's durable state: the previous-session
// table (a single binary cache file per build profile) and the
// content-addressed artifact cache.
//
// Both follow one rule, in opposite directions: the table is cheap to lose
// and must never be trusted when damaged (any corruption reads as empty),
// while artifacts are immutable once written and must never be overwritten
// (a new fingerprint is a new file). Neither failure mode may abort a
// build; the worst a damaged cache can cost is a full recompilation.
package store
