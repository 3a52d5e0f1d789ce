package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		require.False(t, id.IsEmpty(), "empty ID at iteration %d", i)
		require.False(t, ids[id], "duplicate ID: %s", id)
		ids[id] = true
	}
	assert.Len(t, ids, numIDs)
}

func TestParseCheckID(t *testing.T) {
	id := NewCheckID()
	parsed, err := ParseCheckID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	for _, bad := range []string{"", "  ", "not-a-uuid"} {
		_, err := ParseCheckID(bad)
		assert.True(t, errors.Is(err, ErrInvalidInput), "input %q", bad)
	}
}

func TestParseJobID(t *testing.T) {
	id, err := ParseJobID("  stimulus-3 ")
	require.NoError(t, err)
	assert.Equal(t, JobID("stimulus-3"), id)

	_, err = ParseJobID("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestComputeFingerprint(t *testing.T) {
	a := ComputeFingerprint("y ~ x", "~ 1", "normal", 5, 42)
	b := ComputeFingerprint("y ~ x", "~ 1", "normal", 5, 42)
	c := ComputeFingerprint("y ~ x", "~ 1", "normal", 5, 43)
	d := ComputeFingerprint("y ~ x", "~ 1n", "ormal", 5, 42)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Len(t, a.String(), 64)
	assert.Len(t, Hash(a).Short(), 12)
}
