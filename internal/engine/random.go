package engine

import (
	"math/rand/v2"

	"github.com/MRamiBalles/conway-life/internal/domain/population"
)

// NewRandomSource returns a deterministic PCG source for the given seed.
func NewRandomSource(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>32|1))
}

// globalSource draws from the runtime-seeded top-level generator.
type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

var _ population.RandomSource = globalSource{}
