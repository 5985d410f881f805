package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBorrowcheckSingleMove(t *testing.T) {
	m, err := parseSource(t, `module main
fn consume(own buf: Buffer) -> Int {
	return size(buf);
}
`)
	require.NoError(t, err)
	assert.NoError(t, Borrowcheck("main.weft", m))
}

func TestBorrowcheckDoubleMove(t *testing.T) {
	m, err := parseSource(t, `module main
fn consume(own buf: Buffer) -> Int {
	let a = size(buf);
	return size(buf);
}
`)
	require.NoError(t, err)

	err = Borrowcheck("main.weft", m)
	require.Error(t, err)
	var borrowErr *BorrowError
	require.ErrorAs(t, err, &borrowErr)
	assert.Equal(t, 4, borrowErr.Line)
	assert.Contains(t, err.Error(), `use of moved value "buf"`)
}

func TestBorrowcheckIgnoresUnownedParams(t *testing.T) {
	m, err := parseSource(t, `module main
fn twice(x: Int) -> Int {
	return x + x;
}
`)
	require.NoError(t, err)
	assert.NoError(t, Borrowcheck("main.weft", m))
}

func TestBorrowcheckUnusedOwnedParam(t *testing.T) {
	m, err := parseSource(t, `module main
fn drop(own buf: Buffer) {
}
`)
	require.NoError(t, err)
	assert.NoError(t, Borrowcheck("main.weft", m))
}
