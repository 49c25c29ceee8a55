// Package shuffle permutes boards with the Fisher-Yates algorithm.
package shuffle

import "github.com/robalobadob/matchgames/internal/rng"

// Shuffle permutes s in place. Every permutation is equally likely given a
// uniform src. Slices of length 0 or 1 are left untouched.
func Shuffle[T any](src rng.Source, s []T) {
	for i := len(s) - 1; i >= 1; i-- {
		j := src.Intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// Shuffled returns a permuted copy of s.
func Shuffled[T any](src rng.Source, s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	Shuffle(src, out)
	return out
}
