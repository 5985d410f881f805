package query

import (
	"fmt"
	"strings"
)

// The engine distinguishes three error families:
//
//   - Provider errors: domain failures from a stage (a parse error, a type
//     error, an unreadable source file). Cached as failed for the session
//     and propagated to dependents as FailedDependencyError without
//     re-running providers.
//   - Cycle errors: a query re-entered while already active on the
//     dependency tracker stack. Always fatal, never silently broken.
//   - Cache-integrity failures: these never surface as errors at all; a
//     missing or corrupt cache degrades to recomputation.

// ProviderError is a tagged domain failure attached to the query that
// produced it.
type ProviderError struct {
	// Key identifies the failing query.
	Key Key

	// Err is the underlying diagnostic.
	Err error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Key, e.Err)
}

// Unwrap exposes the underlying diagnostic for errors.Is/As.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// FailedDependencyError marks a query that failed because one of the
// queries it read had already failed. The original provider error is
// reachable through Unwrap; the failing provider is never re-run.
type FailedDependencyError struct {
	// Key identifies the dependent query.
	Key Key

	// Dep identifies the dependency whose failure propagated.
	Dep Key

	// Err is the dependency's failure.
	Err error
}

// Error implements the error interface.
func (e *FailedDependencyError) Error() string {
	return fmt.Sprintf("%s: dependency %s failed: %v", e.Key, e.Dep, e.Err)
}

// Unwrap exposes the dependency's failure.
func (e *FailedDependencyError) Unwrap() error {
	return e.Err
}

// CycleError reports a self-referential query graph: a key was forced while
// already active on the dependency tracker stack. This is a fatal
// configuration error (a cyclic module graph), never retried or silently
// broken.
type CycleError struct {
	// Stack is the full cycle trace: every frame active at detection time,
	// outermost first, followed by the re-entered key.
	Stack []Key
}

// Error implements the error interface, rendering the full cycle trace.
func (e *CycleError) Error() string {
	parts := make([]string, len(e.Stack))
	for i, k := range e.Stack {
		parts[i] = k.String()
	}
	return "query cycle detected: " + strings.Join(parts, " -> ")
}

// NoProviderError reports a stage with no registered provider. This is a
// wiring bug, not a build failure.
type NoProviderError struct {
	Stage Stage
}

// Error implements the error interface.
func (e *NoProviderError) Error() string {
	return fmt.Sprintf("no provider registered for stage %s", e.Stage)
}
