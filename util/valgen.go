// Package valgen provides closures that generate stimulus values.
package valgen

import (
	"math"
	"math/cmplx"
	"math/rand"
)

// MakeConstGen returns a generator that always yields c.
func MakeConstGen(c complex128) func() complex128 {
	return func() complex128 {
		return c
	}
}

// MakeRampGen yields 0, 1/n, 2/n, ... with every value repeated repeat
// times.
func MakeRampGen(n, repeat int) func() complex128 {
	i := 0
	return func() complex128 {
		v := complex(float64(i/repeat)/float64(n), 0)
		i++
		return v
	}
}

// MakeUniformGen yields complex values whose real and imaginary parts are
// uniform in [-1, 1).
func MakeUniformGen(rng *rand.Rand) func() complex128 {
	return func() complex128 {
		re := rng.Float64()*2 - 1
		im := rng.Float64()*2 - 1
		return complex(re, im)
	}
}

// MakeDiskGen yields complex values uniformly distributed over the disk of
// the given radius.
func MakeDiskGen(rng *rand.Rand, radius float64) func() complex128 {
	return func() complex128 {
		r := radius * math.Sqrt(rng.Float64())
		return cmplx.Rect(r, 2*math.Pi*rng.Float64())
	}
}

// MakeMetaGen yields metadata values that fit in mwidth bits.
func MakeMetaGen(rng *rand.Rand, mwidth int) func() int {
	return func() int {
		return rng.Intn(1 << mwidth)
	}
}

// Take collects n values from a generator.
func Take[T any](gen func() T, n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = gen()
	}

	return out
}
