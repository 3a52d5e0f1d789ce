package ports

import (
	"context"
	"math/rand/v2"
)

// RNGPort provides caller-owned random sources. Every stage that samples
// receives its stream explicitly; nothing reads global random state.
type RNGPort interface {
	// Stream returns a generator for a named operation. The same (name, seed)
	// pair always yields the same sequence. Seed 0 requests an unseeded stream.
	Stream(ctx context.Context, name string, seed int64) (*rand.Rand, error)
}
