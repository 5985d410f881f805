package query

// Green checking decides, per query per session, whether a cached result
// from the previous session may be reused verbatim (green) or must be
// recomputed (red).
//
// The check is recursive and memoized in the session color map, so each
// key is evaluated at most once per session regardless of fan-in, and the
// walk terminates on arbitrarily large dependency graphs.
//
// A key is red when any of:
//   - it has no previous-session entry;
//   - its input fingerprint, recomputed from the previous session's stored
//     dependency output fingerprints plus freshly measured external inputs
//     (the current on-disk source digest, the library-environment digest,
//     the codegen options digest), differs from the stored one;
//   - the stored dependency list no longer matches the build graph (a
//     dependency without a previous entry) — a shape mismatch is red, not
//     reconciled;
//   - a dependency is red AND recomputing it produced a different output
//     fingerprint than the previous session recorded.
//
// The last clause is the change firewall: a red dependency whose
// recomputation lands on the same output fingerprint (a module body edited
// without changing its exported interface, say) does not poison its
// dependents. Recomputation there is not wasted work — a red dependency
// had to run again regardless; the question is only whether the change
// propagates.

// isGreen computes (or recalls) the color of key. Callers must hold no
// context locks.
func (rn *Run) isGreen(key Key) bool {
	c := rn.ctx

	c.mu.Lock()
	if color := c.colors[key]; color != ColorUnknown {
		c.mu.Unlock()
		return color == ColorGreen
	}
	c.mu.Unlock()

	green := rn.checkGreen(key)

	c.mu.Lock()
	if green {
		c.colors[key] = ColorGreen
	} else {
		c.colors[key] = ColorRed
	}
	c.mu.Unlock()
	return green
}

func (rn *Run) checkGreen(key Key) bool {
	c := rn.ctx

	prev, ok := c.prevLookup(key)
	if !ok {
		return false
	}

	// Recompute the input fingerprint from stored fingerprints only — no
	// provider runs here. Leaf external inputs (file digests) are measured
	// fresh; everything else comes from the previous session's table.
	inFP, ok := c.inputFP(key, prev.Deps, c.prevLookup)
	if !ok || inFP != prev.InputFP {
		return false
	}

	// Walk the stored dependency list in recorded order; the first
	// propagating change short-circuits the rest.
	for _, dep := range prev.Deps {
		if rn.isGreen(dep) {
			continue
		}

		// The dependency is red and will be recomputed no matter what.
		// Force it now (through the normal memoized path) and compare the
		// fresh output fingerprint with the stored one to decide whether
		// the change actually reaches this dependent.
		if _, err := rn.force(dep); err != nil {
			return false
		}
		cur, ok := c.sessionLookup(dep)
		if !ok {
			return false
		}
		prevDep, ok := c.prevLookup(dep)
		if !ok || cur.OutputFP != prevDep.OutputFP {
			return false
		}
	}

	return true
}
