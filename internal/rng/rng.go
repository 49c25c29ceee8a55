// internal/rng/rng.go
//
// Uniform random source used for shuffling boards and generating colors.
// Responsibilities:
//   - Float64 in [0,1) with uniform distribution.
//   - Intn derived from Float64 as floor(Float64() * n).
//
// Notes:
//   - New() seeds from crypto/rand; NewSeeded() is deterministic and backs the
//     daily board and tests.
//   - A Rand is not safe for concurrent use; each game owns its own.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// Source produces uniformly distributed numbers.
type Source interface {
	// Float64 returns a value in [0,1).
	Float64() float64
	// Intn returns a value in [0,n). n <= 0 yields 0.
	Intn(n int) int
}

// Rand is the default Source, backed by a PCG generator.
type Rand struct {
	r *rand.Rand
}

// New returns a Source seeded from crypto entropy.
func New() *Rand {
	var b [16]byte
	_, _ = crand.Read(b[:])
	return &Rand{r: rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(b[:8]),
		binary.LittleEndian.Uint64(b[8:]),
	))}
}

// NewSeeded returns a deterministic Source for the given seed.
func NewSeeded(seed uint64) *Rand {
	return &Rand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *Rand) Float64() float64 { return s.r.Float64() }

func (s *Rand) Intn(n int) int { return Intn(s, n) }

// Intn maps a Float64 draw onto [0,n) for any Source.
func Intn(src Source, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(src.Float64() * float64(n))
	// Float64 is strictly below 1, but guard against rounding at large n.
	if i >= n {
		i = n - 1
	}
	return i
}
