// Package verify compares what a test bench captured with what the
// reference says it should have produced, and reports the outcome.
//
// Samples are compared approximately: a pair passes when the magnitude of
// the difference rounds to zero at the requested number of decimal places.
// Metadata and extra signals pass through the design untouched, so they are
// compared exactly. The design's error line is expected to stay low.
package verify

import (
	"fmt"
	"math"
	"math/cmplx"
)

// DefaultPlaces is the number of decimal places samples are compared to.
const DefaultPlaces = 3

// AlmostEqual reports whether |a-b| rounds to zero at the given number of
// decimal places.
func AlmostEqual(a, b complex128, places int) bool {
	d := cmplx.Abs(a - b)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return false
	}

	return math.Round(d*math.Pow(10, float64(places))) == 0
}

// A Mismatch is one position where the capture differs from the
// expectation.
type Mismatch struct {
	Index int
	Got   string
	Want  string
}

// CompareSamples returns the positions where got and want are not almost
// equal. Only the common prefix is compared.
func CompareSamples(got, want []complex128, places int) []Mismatch {
	var out []Mismatch

	for i := 0; i < len(got) && i < len(want); i++ {
		if !AlmostEqual(got[i], want[i], places) {
			out = append(out, Mismatch{
				Index: i,
				Got:   formatComplex(got[i]),
				Want:  formatComplex(want[i]),
			})
		}
	}

	return out
}

// CompareInts returns the positions where got and want differ. Only the
// common prefix is compared.
func CompareInts(got, want []int) []Mismatch {
	var out []Mismatch

	for i := 0; i < len(got) && i < len(want); i++ {
		if got[i] != want[i] {
			out = append(out, Mismatch{
				Index: i,
				Got:   fmt.Sprint(got[i]),
				Want:  fmt.Sprint(want[i]),
			})
		}
	}

	return out
}

func formatComplex(c complex128) string {
	return fmt.Sprintf("%.5f%+.5fi", real(c), imag(c))
}
