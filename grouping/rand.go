package grouping

import (
	"math/rand/v2"

	"github.com/zeebo/xxh3"
)

// NewRand returns a generator seeded from the runtime's random source.
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())) // #nosec G404
}

// SeededRand returns a generator whose sequence depends only on seed, so the
// same seed always yields the same groups for the same roster.
func SeededRand(seed string) *rand.Rand {
	return rand.New(rand.NewPCG(xxh3.HashString(seed), xxh3.HashStringSeed(seed, 0x9e3779b97f4a7c15))) // #nosec G404
}
