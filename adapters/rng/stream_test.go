package rng

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func take(t *testing.T, name string, seed int64) []uint64 {
	r, err := New().Stream(context.Background(), name, seed)
	require.NoError(t, err)
	out := make([]uint64, 8)
	for i := range out {
		out[i] = r.Uint64()
	}
	return out
}

func TestStreamIsReproducible(t *testing.T) {
	assert.Equal(t, take(t, "sample", 42), take(t, "sample", 42))
	assert.NotEqual(t, take(t, "sample", 42), take(t, "sample", 43))
	assert.NotEqual(t, take(t, "sample", 42), take(t, "propagate", 42))
}

func TestUnseededStreamsDiffer(t *testing.T) {
	assert.NotEqual(t, take(t, "sample", 0), take(t, "sample", 0))
}

func TestDeriveSeedHalvesDiffer(t *testing.T) {
	hi, lo := DeriveSeed("x", 1)
	assert.NotEqual(t, hi, lo)
}

func TestStreamHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Stream(ctx, "sample", 1)
	assert.ErrorIs(t, err, context.Canceled)
}
