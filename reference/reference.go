// Package reference holds the floating point models that captured DUT
// outputs are compared against.
package reference

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrBlockSize is returned when a block is not a power of two long.
var ErrBlockSize = errors.New("reference: block length must be a power of two")

// BlockFunc computes the reference output of one block.
type BlockFunc func(block []complex128) ([]complex128, error)

// Convolve filters data with taps. The input is zero padded with
// len(taps)-1 leading samples so the output has the same length as data.
func Convolve(data []complex128, taps []float64) []complex128 {
	out := make([]complex128, len(data))
	if len(taps) == 0 {
		return out
	}

	padded := make([]complex128, len(taps)-1, len(taps)-1+len(data))
	padded = append(padded, data...)

	for i := len(taps) - 1; i < len(padded); i++ {
		var v complex128
		for j, t := range taps {
			v += padded[i-j] * complex(t, 0)
		}
		out[i-len(taps)+1] = v
	}

	return out
}

// Deinterleave splits data into n streams, stream i holding data[i::n].
func Deinterleave(data []complex128, n int) [][]complex128 {
	streams := make([][]complex128, n)
	for i, d := range data {
		streams[i%n] = append(streams[i%n], d)
	}

	return streams
}

// Interleave merges streams round-robin, the inverse of Deinterleave.
func Interleave(streams [][]complex128) []complex128 {
	var out []complex128

	for k := 0; ; k++ {
		added := false
		for _, s := range streams {
			if k < len(s) {
				out = append(out, s[k])
				added = true
			}
		}

		if !added {
			return out
		}
	}
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// DIT returns the FFT of block scaled by 1/N, in natural order. This is what
// a decimation-in-time FFT that halves its data at every stage produces.
func DIT(block []complex128) ([]complex128, error) {
	n := len(block)
	if !isPowerOfTwo(n) {
		return nil, fmt.Errorf("%w: got %d", ErrBlockSize, n)
	}

	fft := fourier.NewCmplxFFT(n)
	coeffs := fft.Coefficients(nil, block)

	s := complex(1/float64(n), 0)
	for i := range coeffs {
		coeffs[i] *= s
	}

	return coeffs, nil
}

// Twiddle returns exp(-2*pi*i*k/n).
func Twiddle(k, n int) complex128 {
	return cmplx.Exp(complex(0, -2*math.Pi*float64(k)/float64(n)))
}

// Stage applies the last radix-2 stage of a decimation-in-time FFT. The
// first half of block holds the transform of the even samples and the
// second half the transform of the odd samples; both outputs are halved.
func Stage(block []complex128) ([]complex128, error) {
	n := len(block)
	if !isPowerOfTwo(n) || n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrBlockSize, n)
	}

	half := n / 2
	out := make([]complex128, n)

	for k := 0; k < half; k++ {
		e := block[k]
		o := block[k+half] * Twiddle(k, n)
		out[k] = (e + o) / 2
		out[k+half] = (e - o) / 2
	}

	return out, nil
}

// Blockwise applies fn to every complete block of n samples. A trailing
// partial block produces no output, like the hardware.
func Blockwise(fn BlockFunc, samples []complex128, n int) ([]complex128, error) {
	var out []complex128

	for start := 0; start+n <= len(samples); start += n {
		res, err := fn(samples[start : start+n])
		if err != nil {
			return nil, fmt.Errorf("block at %d: %w", start, err)
		}

		out = append(out, res...)
	}

	return out, nil
}

// PruneZeros strips leading and trailing zeros.
func PruneZeros(xs []complex128) []complex128 {
	start, stop := -1, -1

	for i, x := range xs {
		if x != 0 {
			if start < 0 {
				start = i
			}
			stop = i
		}
	}

	if start < 0 {
		return []complex128{}
	}

	return xs[start : stop+1]
}

// FirstFilterPattern returns the first_filter flag sequence a filterbank
// with nFilters channels emits for nData samples per channel.
func FirstFilterPattern(nFilters, nData int) []int {
	pattern := make([]int, 0, nFilters*nData)

	for i := 0; i < nData; i++ {
		pattern = append(pattern, 1)
		for j := 1; j < nFilters; j++ {
			pattern = append(pattern, 0)
		}
	}

	return pattern
}
