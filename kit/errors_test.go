package kit

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormat(t *testing.T) {
	err := &Error{Path: "/site/page.kit", Line: 7, Err: fmt.Errorf("%w: title", ErrUndefinedVar)}
	assert.Equal(t, "/site/page.kit:7: undefined variable: title", err.Error())
	assert.ErrorIs(t, err, ErrUndefinedVar)
}

func TestFailAnchorsBareErrors(t *testing.T) {
	err := fail(ErrCycle, "a.kit", 3)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "a.kit", perr.Path)
	assert.Equal(t, 3, perr.Line)
}

func TestFailKeepsInnermostPosition(t *testing.T) {
	inner := &Error{Path: "a.kit", Line: 3, Err: ErrCycle}
	err := fail(fmt.Errorf("in import: %w", inner), "b.kit", 9)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "a.kit", perr.Path)
	assert.Equal(t, 3, perr.Line)
	assert.True(t, errors.Is(err, ErrCycle))
}
