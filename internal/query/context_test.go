package query

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftlang/weft/internal/fingerprint"
)

func unit(module string) UnitID {
	return UnitID{Path: "src/" + module + ".weft", Module: module}
}

func TestForceMemoizesWithinSession(t *testing.T) {
	var calls int32
	reg := NewRegistry()
	reg.Register(StageTokenize, func(rn *Run, key Key) (Outcome, error) {
		atomic.AddInt32(&calls, 1)
		return Outcome{Value: "tokens:" + key.Unit.Module}, nil
	})
	ctx := NewContext(Options{}, reg, nil, nil, nil)
	key := ctx.KeyFor(StageTokenize, unit("main"))

	v1, err := ctx.Force(key)
	require.NoError(t, err)
	v2, err := ctx.Force(key)
	require.NoError(t, err)

	assert.Equal(t, "tokens:main", v1)
	assert.Equal(t, v1, v2)
	assert.EqualValues(t, 1, calls)
	assert.Equal(t, 1, ctx.Stats().TotalExecuted())
}

func TestForceAtMostOnceUnderContention(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	reg := NewRegistry()
	reg.Register(StageTokenize, func(rn *Run, key Key) (Outcome, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return Outcome{Value: 42}, nil
	})
	ctx := NewContext(Options{}, reg, nil, nil, nil)
	key := ctx.KeyFor(StageTokenize, unit("main"))

	const workers = 16
	var wg sync.WaitGroup
	results := make([]any, workers)
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := ctx.Force(key)
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls)
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestDependencyRecordingAndInputFingerprint(t *testing.T) {
	reg := NewRegistry()
	reg.Register(StageTokenize, func(rn *Run, key Key) (Outcome, error) {
		return Outcome{Value: "toks", OutputFP: fingerprint.OfString("leaf-output")}, nil
	})
	reg.Register(StageParseModule, func(rn *Run, key Key) (Outcome, error) {
		if _, err := rn.Force(rn.Context().KeyFor(StageTokenize, key.Unit)); err != nil {
			return Outcome{}, err
		}
		return Outcome{Value: "tree"}, nil
	})
	ctx := NewContext(Options{}, reg, nil, nil, nil)

	_, err := ctx.Force(ctx.KeyFor(StageParseModule, unit("main")))
	require.NoError(t, err)

	entries := ctx.Entries()
	require.Len(t, entries, 2)

	var parse Entry
	for _, e := range entries {
		if e.Key.Stage == StageParseModule {
			parse = e
		}
	}
	require.Equal(t, StageParseModule, parse.Key.Stage)
	require.Len(t, parse.Deps, 1)
	assert.Equal(t, StageTokenize, parse.Deps[0].Stage)

	want := fingerprint.Combine(
		fingerprint.OfString("weft/stage/parse_module"),
		fingerprint.OfString("leaf-output"),
	)
	assert.Equal(t, want, parse.InputFP)
	// Passthrough stage: output equals input.
	assert.Equal(t, parse.InputFP, parse.OutputFP)
}

func TestExplicitOutputFingerprintIsKept(t *testing.T) {
	out := fingerprint.OfString("interface-encoding")
	reg := NewRegistry()
	reg.Register(StageTypecheckModule, func(rn *Run, key Key) (Outcome, error) {
		return Outcome{Value: "env", OutputFP: out}, nil
	})
	ctx := NewContext(Options{}, reg, nil, nil, nil)

	_, err := ctx.Force(ctx.KeyFor(StageTypecheckModule, unit("main")))
	require.NoError(t, err)

	entries := ctx.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, out, entries[0].OutputFP)
	assert.NotEqual(t, entries[0].InputFP, entries[0].OutputFP)
}

func TestCycleIsFatalWithFullTrace(t *testing.T) {
	reg := NewRegistry()
	reg.Register(StageTypecheckModule, func(rn *Run, key Key) (Outcome, error) {
		other := "b"
		if key.Unit.Module == "b" {
			other = "a"
		}
		_, err := rn.Force(rn.Context().KeyFor(StageTypecheckModule, unit(other)))
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Value: "env"}, nil
	})
	ctx := NewContext(Options{}, reg, nil, nil, nil)

	_, err := ctx.Force(ctx.KeyFor(StageTypecheckModule, unit("a")))
	require.Error(t, err)

	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	require.Len(t, ce.Stack, 3)
	assert.Equal(t, "a", ce.Stack[0].Unit.Module)
	assert.Equal(t, "b", ce.Stack[1].Unit.Module)
	assert.Equal(t, "a", ce.Stack[2].Unit.Module)
	assert.Contains(t, err.Error(), "query cycle detected")
}

func TestCycleSplitAcrossWorkersIsDetected(t *testing.T) {
	// Each worker claims its own query's cell before recursing into the
	// other's, so neither tracker ever sees a re-entry: the cycle exists
	// only in the waits-for relation between the two in-flight cells.
	claimed := map[string]chan struct{}{
		"a": make(chan struct{}),
		"b": make(chan struct{}),
	}
	reg := NewRegistry()
	reg.Register(StageTypecheckModule, func(rn *Run, key Key) (Outcome, error) {
		other := "b"
		if key.Unit.Module == "b" {
			other = "a"
		}
		close(claimed[key.Unit.Module])
		<-claimed[other]
		if _, err := rn.Force(rn.Context().KeyFor(StageTypecheckModule, unit(other))); err != nil {
			return Outcome{}, err
		}
		return Outcome{Value: "env"}, nil
	})
	ctx := NewContext(Options{}, reg, nil, nil, nil)

	errs := make(chan error, 2)
	for _, module := range []string{"a", "b"} {
		module := module
		go func() {
			_, err := ctx.Force(ctx.KeyFor(StageTypecheckModule, unit(module)))
			errs <- err
		}()
	}

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			var ce *CycleError
			require.ErrorAs(t, err, &ce)
			assert.Contains(t, err.Error(), "typecheck_module(a)")
			assert.Contains(t, err.Error(), "typecheck_module(b)")
		case <-time.After(5 * time.Second):
			t.Fatal("cycle between workers was never reported")
		}
	}
}

func TestFailedDependencyTagsBothKeys(t *testing.T) {
	boom := errors.New("unterminated string literal")
	reg := NewRegistry()
	reg.Register(StageTokenize, func(rn *Run, key Key) (Outcome, error) {
		return Outcome{}, boom
	})
	reg.Register(StageParseModule, func(rn *Run, key Key) (Outcome, error) {
		if _, err := rn.Force(rn.Context().KeyFor(StageTokenize, key.Unit)); err != nil {
			return Outcome{}, err
		}
		return Outcome{Value: "tree"}, nil
	})
	ctx := NewContext(Options{}, reg, nil, nil, nil)

	_, err := ctx.Force(ctx.KeyFor(StageParseModule, unit("main")))
	require.Error(t, err)

	var fd *FailedDependencyError
	require.ErrorAs(t, err, &fd)
	assert.Equal(t, StageParseModule, fd.Key.Stage)
	assert.Equal(t, StageTokenize, fd.Dep.Stage)
	assert.ErrorIs(t, err, boom)

	// Failed queries never contribute session entries.
	assert.Empty(t, ctx.Entries())
}

func TestFailureIsCachedForTheSession(t *testing.T) {
	var calls int32
	reg := NewRegistry()
	reg.Register(StageTokenize, func(rn *Run, key Key) (Outcome, error) {
		atomic.AddInt32(&calls, 1)
		return Outcome{}, fmt.Errorf("call %d failed", calls)
	})
	ctx := NewContext(Options{}, reg, nil, nil, nil)
	key := ctx.KeyFor(StageTokenize, unit("main"))

	_, err1 := ctx.Force(key)
	_, err2 := ctx.Force(key)
	require.Error(t, err1)
	assert.Equal(t, err1, err2)
	assert.EqualValues(t, 1, calls)
}

func TestNoProviderIsAnEngineError(t *testing.T) {
	ctx := NewContext(Options{}, NewRegistry(), nil, nil, nil)
	_, err := ctx.Force(ctx.KeyFor(StageMirBuild, unit("main")))

	var np *NoProviderError
	require.ErrorAs(t, err, &np)
	assert.Equal(t, StageMirBuild, np.Stage)
}

func TestOptionsDigestDistinguishesProfiles(t *testing.T) {
	debug := Options{Target: "x86_64-unknown-linux-gnu", OptLevel: 0, DebugInfo: true}
	release := Options{Target: "x86_64-unknown-linux-gnu", OptLevel: 2}

	assert.NotEqual(t, debug.Digest(), release.Digest())
	assert.Equal(t, debug.Digest(), debug.Digest())

	withDefine := debug
	withDefine.Defines = []string{"TRACE"}
	assert.NotEqual(t, debug.Digest(), withDefine.Digest())
}
