package query

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/weftlang/weft/internal/fingerprint"
)

// Context is the orchestrator for one build session: given a requested
// query it resolves providers, consults the green checker, executes
// providers on demand, and populates the in-memory query store.
//
// Thread-safety model:
//   - Force is safe from any goroutine; concurrent forces of the SAME key
//     block on a per-key completion event so the provider runs at most
//     once per session (hard invariant).
//   - Each Force call tree is evaluated single-threaded on its own
//     dependency tracker; re-entrancy through one tracker is caught on
//     its stack. A cycle split across trackers surfaces as a waits-for
//     chain among in-flight cells and is caught before blocking, so a
//     cyclic graph reports a CycleError under any degree of parallelism.
//   - The previous-session table is read-only for the session's duration
//     and the session's entries are written exactly once, by the caller,
//     after all workers join.
type Context struct {
	opts      Options
	optsFP    fingerprint.Fingerprint
	codegenFP fingerprint.Fingerprint
	reg       *Registry
	prev      Previous // nil when no previous session exists
	arts      Artifacts
	logger    *slog.Logger

	mu      sync.Mutex
	memo    map[Key]*cell
	colors  map[Key]Color
	waiting map[*tracker]Key // tracker -> the in-flight cell it is blocked on
	stats   Stats
}

// cell is one slot of the in-memory query store. The owner tracker's
// goroutine publishes value/err/entry and closes done; everyone else
// waits on done.
type cell struct {
	done  chan struct{}
	owner *tracker
	value any
	err   error
	entry Entry
	ok    bool
}

// Stats counts provider work for one session. Used by rebuild tests and
// surfaced in build reports.
type Stats struct {
	// Executed counts provider executions that produced a new session
	// entry, by stage. Green re-derivations are not executions; see
	// Rederived.
	Executed [NumStages]int

	// Reused counts green queries whose previous-session result was
	// reused, whether rehydrated from the artifact cache or re-derived.
	Reused int

	// Rederived counts the subset of reused queries whose value was
	// materialized by re-running the provider, because the stage
	// persists no artifact. The previous fingerprints and dependency
	// list are kept.
	Rederived int
}

// TotalExecuted sums provider executions across stages.
func (s Stats) TotalExecuted() int {
	total := 0
	for _, n := range s.Executed {
		total += n
	}
	return total
}

// NewContext creates a session context. prev may be nil (no previous
// session); logger may be nil (slog.Default).
func NewContext(opts Options, reg *Registry, prev Previous, arts Artifacts, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		opts:      opts,
		optsFP:    opts.Digest(),
		codegenFP: opts.codegenDigest(),
		reg:       reg,
		prev:      prev,
		arts:      arts,
		logger:    logger,
		memo:      make(map[Key]*cell),
		colors:    make(map[Key]Color),
		waiting:   make(map[*tracker]Key),
	}
}

// Options returns the session's build options.
func (c *Context) Options() Options {
	return c.opts
}

// OptionsDigest returns the session's options digest, the third component
// of every key this context constructs.
func (c *Context) OptionsDigest() fingerprint.Fingerprint {
	return c.optsFP
}

// KeyFor builds the key for a stage/unit pair under this session's
// options.
func (c *Context) KeyFor(stage Stage, unit UnitID) Key {
	return Key{Stage: stage, Unit: unit, Options: c.optsFP}
}

// Force evaluates a top-level query on a fresh dependency tracker.
// Providers must instead call Run.Force so their reads are recorded.
func (c *Context) Force(key Key) (any, error) {
	rn := &Run{ctx: c, tr: newTracker()}
	return rn.Force(key)
}

// Stats returns a snapshot of the session's work counters.
func (c *Context) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Entries returns the session entries of every successfully completed
// query, sorted by key, for merging into the previous-session store.
func (c *Context) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Entry, 0, len(c.memo))
	for _, cl := range c.memo {
		select {
		case <-cl.done:
		default:
			continue // still executing; caller should have joined workers
		}
		if cl.ok {
			entries = append(entries, cl.entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.Compare(entries[j].Key) < 0
	})
	return entries
}

// sessionLookup returns the completed session entry for key, if any.
func (c *Context) sessionLookup(key Key) (Entry, bool) {
	c.mu.Lock()
	cl, ok := c.memo[key]
	c.mu.Unlock()
	if !ok {
		return Entry{}, false
	}
	select {
	case <-cl.done:
	default:
		return Entry{}, false
	}
	if !cl.ok {
		return Entry{}, false
	}
	return cl.entry, true
}

func (c *Context) prevLookup(key Key) (Entry, bool) {
	if c.prev == nil {
		return Entry{}, false
	}
	return c.prev.Lookup(key)
}

func (c *Context) noteExecuted(key Key) {
	c.mu.Lock()
	c.stats.Executed[key.Stage]++
	c.mu.Unlock()
}

func (c *Context) noteReused() {
	c.mu.Lock()
	c.stats.Reused++
	c.mu.Unlock()
}

// Run is one worker's view of the context: the shared session state plus
// this worker's private dependency tracker. Providers receive a Run and
// must route every query read through its Force method.
type Run struct {
	ctx *Context
	tr  *tracker
}

// Context returns the shared session context.
func (rn *Run) Context() *Context {
	return rn.ctx
}

// Artifacts returns the content-addressed artifact cache.
func (rn *Run) Artifacts() Artifacts {
	return rn.ctx.arts
}

// Force evaluates key on behalf of the currently executing query (if any),
// recording the dependency edge in first-occurrence order.
//
//  1. A session memo hit returns the cached result; a query is never
//     executed twice in one session regardless of fan-in.
//  2. A green key is rehydrated from the previous session: fingerprints
//     and dependency list are copied, artifacts reloaded. An unreadable
//     artifact degrades the key to red instead of failing the build.
//  3. Otherwise the provider executes under a fresh tracker frame.
//
// Failed queries are cached as failed for the session so dependents fail
// fast without re-deriving the same error.
func (rn *Run) Force(key Key) (any, error) {
	if rn.tr.onStack(key) {
		return nil, &CycleError{Stack: rn.tr.cycleTrace(key)}
	}
	rn.tr.record(key)
	return rn.force(key)
}

// force is Force without recording the edge; the green checker uses it so
// verification reads do not pollute the dependent's recorded list.
func (rn *Run) force(key Key) (any, error) {
	c := rn.ctx
	if rn.tr.onStack(key) {
		return nil, &CycleError{Stack: rn.tr.cycleTrace(key)}
	}
	if c.reg.provider(key.Stage) == nil {
		return nil, &NoProviderError{Stage: key.Stage}
	}

	c.mu.Lock()
	if cl, hit := c.memo[key]; hit {
		// Blocking on another worker's in-flight cell can close a
		// waits-for loop; that is an import cycle split across workers
		// and must be reported, never waited out.
		if trace, cyclic := c.waitsFor(rn.tr, key); cyclic {
			c.mu.Unlock()
			return nil, &CycleError{Stack: trace}
		}
		c.waiting[rn.tr] = key
		c.mu.Unlock()
		<-cl.done
		c.mu.Lock()
		delete(c.waiting, rn.tr)
		c.mu.Unlock()
		return cl.value, cl.err
	}
	cl := &cell{done: make(chan struct{}), owner: rn.tr}
	c.memo[key] = cl
	c.mu.Unlock()

	value, entry, err := rn.evaluate(key)
	cl.value, cl.err = value, err
	if err == nil {
		cl.entry = entry
		cl.ok = true
	}
	close(cl.done)
	return value, err
}

// waitsFor reports whether blocking tr on key would deadlock: key's
// owning tracker is itself blocked on a cell whose owner is blocked on
// another, and the chain re-enters a key tr is currently evaluating.
// Registration and this check happen under the same lock, so for any
// such loop at least one participant observes it and reports instead of
// blocking; the CycleError then unblocks the rest through the failed
// cells. Returns the cycle trace in dependency order. Caller holds c.mu.
func (c *Context) waitsFor(tr *tracker, key Key) ([]Key, bool) {
	chain := []Key{key}
	visited := map[*tracker]struct{}{tr: {}}
	for {
		cl, ok := c.memo[chain[len(chain)-1]]
		if !ok || cl.owner == nil {
			return nil, false
		}
		select {
		case <-cl.done:
			// Completed cells never block anyone; a stale waiting entry
			// pointing here is not a deadlock.
			return nil, false
		default:
		}
		if cl.owner == tr {
			return append([]Key{chain[len(chain)-1]}, chain...), true
		}
		if _, dup := visited[cl.owner]; dup {
			return nil, false
		}
		visited[cl.owner] = struct{}{}
		next, blocked := c.waiting[cl.owner]
		if !blocked {
			return nil, false
		}
		chain = append(chain, next)
	}
}

func (rn *Run) evaluate(key Key) (any, Entry, error) {
	c := rn.ctx

	if !c.opts.ForceRebuild && c.prev != nil && rn.isGreen(key) {
		prev, _ := c.prev.Lookup(key)

		if h := c.reg.rehydrator(key.Stage); h != nil {
			value, err := h(rn, prev)
			if err == nil {
				c.noteReused()
				c.logger.Debug("query green, reusing cached result", "query", key.String())
				return value, prev, nil
			}
			// Cache-integrity failure (typically a reclaimed artifact):
			// never fatal, degrade to recomputation.
			c.logger.Debug("green reuse degraded to recompute", "query", key.String(), "error", err)
			return rn.execute(key)
		}

		// No rehydrator: the stage persists nothing, so the value is
		// materialized by re-running the provider. The previous entry is
		// kept verbatim. A provider failure here is a real diagnostic,
		// not a cache problem, and is returned rather than retried.
		value, err := rn.rederive(key)
		if err != nil {
			return nil, Entry{}, wrapProviderErr(key, err)
		}
		c.logger.Debug("query green, value re-derived", "query", key.String())
		return value, prev, nil
	}

	return rn.execute(key)
}

// rederive re-runs a green query's provider to materialize its value.
// Counted in Reused and Rederived, never in Executed: the green check
// already proved the result identical to the previous session's.
func (rn *Run) rederive(key Key) (any, error) {
	c := rn.ctx

	rn.tr.push(key)
	out, err := c.reg.provider(key.Stage)(rn, key)
	rn.tr.pop()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.stats.Reused++
	c.stats.Rederived++
	c.mu.Unlock()
	return out.Value, nil
}

func (rn *Run) execute(key Key) (any, Entry, error) {
	c := rn.ctx

	rn.tr.push(key)
	out, perr := c.reg.provider(key.Stage)(rn, key)
	deps := rn.tr.pop()
	if perr != nil {
		return nil, Entry{}, wrapProviderErr(key, perr)
	}

	inFP, ok := c.inputFP(key, deps, c.sessionLookup)
	if !ok {
		return nil, Entry{}, &ProviderError{Key: key, Err: errors.New("declared inputs unavailable for fingerprinting")}
	}
	outFP := out.OutputFP
	if outFP.IsZero() {
		// Deterministic passthrough: the stage provably does not alter the
		// digest space.
		outFP = inFP
	}

	c.noteExecuted(key)
	c.logger.Debug("query executed", "query", key.String(), "deps", len(deps))

	entry := Entry{
		Key:      key,
		InputFP:  inFP,
		OutputFP: outFP,
		Deps:     deps,
		Artifact: out.Artifact,
	}
	return out.Value, entry, nil
}

// inputFP computes a query's input fingerprint. ReadSource is the leaf: it
// digests the current on-disk file plus the defines. Every other stage
// combines, in recorded order, the output fingerprints of its dependencies
// resolved through lookup, then folds in the stage's external digests
// (library environment for TypecheckModule, codegen options for
// CodegenUnit).
//
// Returns ok=false when an input cannot be resolved: an unreadable source
// file, or a dependency absent from lookup (a shape mismatch between the
// stored list and the current graph, which is treated as red, never
// guessed around).
func (c *Context) inputFP(key Key, deps []Key, lookup func(Key) (Entry, bool)) (fingerprint.Fingerprint, bool) {
	if key.Stage == StageReadSource {
		return c.readSourceInputFP(key)
	}

	fp := fingerprint.OfString("weft/stage/" + key.Stage.String())
	for _, dep := range deps {
		entry, ok := lookup(dep)
		if !ok {
			return fingerprint.Fingerprint{}, false
		}
		fp = fingerprint.Combine(fp, entry.OutputFP)
	}
	if key.Stage == StageTypecheckModule {
		fp = fingerprint.Combine(fp, c.opts.LibEnv)
	}
	if key.Stage == StageCodegenUnit {
		fp = fingerprint.Combine(fp, c.codegenFP)
	}
	return fp, true
}

func (c *Context) readSourceInputFP(key Key) (fingerprint.Fingerprint, bool) {
	fp, err := fingerprint.OfFile(key.Unit.Path)
	if err != nil {
		return fingerprint.Fingerprint{}, false
	}
	for _, def := range c.opts.Defines {
		fp = fingerprint.Combine(fp, fingerprint.OfString(def))
	}
	return fp, true
}

// wrapProviderErr tags a provider failure with the failing key, or marks
// the query as failed-by-dependency when the error originated in a query
// it read. Cycle errors pass through untouched; they abort the build.
func wrapProviderErr(key Key, err error) error {
	var ce *CycleError
	if errors.As(err, &ce) {
		return err
	}
	var np *NoProviderError
	if errors.As(err, &np) {
		return err
	}
	var fd *FailedDependencyError
	if errors.As(err, &fd) {
		return &FailedDependencyError{Key: key, Dep: fd.Dep, Err: err}
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.Key == key {
			return err
		}
		return &FailedDependencyError{Key: key, Dep: pe.Key, Err: err}
	}
	return &ProviderError{Key: key, Err: err}
}
