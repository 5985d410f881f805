package query

// tracker is the single-threaded, stack-based dependency recorder for one
// force call tree.
//
// While a query executes, every Force call made from inside its provider is
// observed and appended to that query's pending dependency list. Lists are
// deduplicated with order of first occurrence preserved, because
// invalidation checks short-circuit in recorded order.
//
// Each worker evaluating a top-level unit owns exactly one tracker; the
// tracker is never shared between goroutines.
type tracker struct {
	frames []*frame
	active map[Key]struct{}
}

type frame struct {
	key  Key
	deps []Key
	seen map[Key]struct{}
}

func newTracker() *tracker {
	return &tracker{active: make(map[Key]struct{})}
}

// onStack reports whether key has an active frame. A Force of such a key is
// a cycle.
func (t *tracker) onStack(key Key) bool {
	_, ok := t.active[key]
	return ok
}

// cycleTrace returns the full active stack plus the re-entered key, for the
// fatal cycle report.
func (t *tracker) cycleTrace(reentered Key) []Key {
	trace := make([]Key, 0, len(t.frames)+1)
	for _, f := range t.frames {
		trace = append(trace, f.key)
	}
	return append(trace, reentered)
}

// push starts tracking dependencies for key. The caller must have checked
// onStack first.
func (t *tracker) push(key Key) {
	t.frames = append(t.frames, &frame{
		key:  key,
		seen: make(map[Key]struct{}),
	})
	t.active[key] = struct{}{}
}

// record appends key to the innermost active frame's dependency list,
// if any frame is active. First occurrence wins; duplicates are dropped.
func (t *tracker) record(key Key) {
	if len(t.frames) == 0 {
		return
	}
	top := t.frames[len(t.frames)-1]
	if _, dup := top.seen[key]; dup {
		return
	}
	top.seen[key] = struct{}{}
	top.deps = append(top.deps, key)
}

// pop finalizes the innermost frame and returns its collected dependency
// list in first-occurrence order.
func (t *tracker) pop() []Key {
	top := t.frames[len(t.frames)-1]
	t.frames = t.frames[:len(t.frames)-1]
	delete(t.active, top.key)
	return top.deps
}
