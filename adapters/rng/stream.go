// Package rng derives named, reproducible random streams from a base seed.
package rng

import (
	"context"
	"encoding/binary"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"

	"modelcheck/ports"
)

// Streams implements ports.RNGPort with PCG generators whose state is hashed
// from (name, seed)
type Streams struct{}

var _ ports.RNGPort = (*Streams)(nil)

// New returns a stream factory
func New() *Streams {
	return &Streams{}
}

// Stream returns a PCG generator. Seed 0 draws fresh state from the runtime
// entropy source, so results are not reproducible.
func (s *Streams) Stream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), nil
	}
	hi, lo := DeriveSeed(name, seed)
	return rand.New(rand.NewPCG(hi, lo)), nil
}

// DeriveSeed hashes a stream name and base seed into PCG state
func DeriveSeed(name string, seed int64) (uint64, uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))

	d := xxhash.New()
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(name)
	hi := d.Sum64()

	_, _ = d.WriteString("/lo")
	lo := d.Sum64()
	return hi, lo
}
