package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func trackerKey(stage Stage, module string) Key {
	return Key{Stage: stage, Unit: UnitID{Path: "src/" + module + ".weft", Module: module}}
}

func TestTrackerRecordsFirstOccurrenceOrder(t *testing.T) {
	tr := newTracker()
	parent := trackerKey(StageParseModule, "main")
	a := trackerKey(StageTokenize, "main")
	b := trackerKey(StageReadSource, "main")

	tr.push(parent)
	tr.record(a)
	tr.record(b)
	tr.record(a) // duplicate, dropped
	deps := tr.pop()

	assert.Equal(t, []Key{a, b}, deps)
}

func TestTrackerNestedFrames(t *testing.T) {
	tr := newTracker()
	outer := trackerKey(StageTypecheckModule, "main")
	inner := trackerKey(StageParseModule, "main")
	leaf := trackerKey(StageTokenize, "main")

	tr.push(outer)
	tr.record(inner)
	tr.push(inner)
	tr.record(leaf)
	assert.Equal(t, []Key{leaf}, tr.pop())
	assert.Equal(t, []Key{inner}, tr.pop())
}

func TestTrackerOnStack(t *testing.T) {
	tr := newTracker()
	a := trackerKey(StageTypecheckModule, "a")
	b := trackerKey(StageTypecheckModule, "b")

	assert.False(t, tr.onStack(a))
	tr.push(a)
	tr.push(b)
	assert.True(t, tr.onStack(a))
	assert.True(t, tr.onStack(b))
	tr.pop()
	assert.False(t, tr.onStack(b))
	assert.True(t, tr.onStack(a))
}

func TestTrackerCycleTrace(t *testing.T) {
	tr := newTracker()
	a := trackerKey(StageTypecheckModule, "a")
	b := trackerKey(StageTypecheckModule, "b")

	tr.push(a)
	tr.push(b)
	assert.Equal(t, []Key{a, b, a}, tr.cycleTrace(a))
}

func TestTrackerRecordOutsideFrameIsNoop(t *testing.T) {
	tr := newTracker()
	tr.record(trackerKey(StageTokenize, "main")) // top-level force, nothing tracking
	tr.push(trackerKey(StageParseModule, "main"))
	assert.Empty(t, tr.pop())
}
