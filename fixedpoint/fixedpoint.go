// Package fixedpoint converts between floating point values and the
// two's-complement fixed-point words that the HDL designs consume and
// produce.
//
// A real value uses all of its width: one sign bit and width-1 fractional
// bits, covering [-1, 1). A complex value of width W stores its real part in
// the upper W/2 bits and its imaginary part in the lower W/2 bits.
package fixedpoint

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"math/bits"
)

var (
	// ErrOutOfRange is returned when a value does not fit in [-1, 1].
	ErrOutOfRange = errors.New("fixedpoint: value out of range")

	// ErrBadWidth is returned for widths that cannot be represented.
	ErrBadWidth = errors.New("fixedpoint: unsupported width")
)

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}

	return (uint64(1) << width) - 1
}

func scale(width int) float64 {
	return math.Ldexp(1, width-1)
}

func checkRealWidth(width int) error {
	if width < 2 || width > 64 {
		return fmt.Errorf("%w: %d bits", ErrBadWidth, width)
	}

	return nil
}

func checkComplexWidth(width int) error {
	if width%2 != 0 || width < 4 || width > 64 {
		return fmt.Errorf("%w: %d bits for a complex number", ErrBadWidth, width)
	}

	return nil
}

// FloatToInt encodes f as a width-bit fixed-point word. A value of exactly
// 1 saturates to the largest positive code.
func FloatToInt(f float64, width int) (uint64, error) {
	if err := checkRealWidth(width); err != nil {
		return 0, err
	}

	if math.IsNaN(f) || f < -1 || f > 1 {
		return 0, fmt.Errorf("%w: %g", ErrOutOfRange, f)
	}

	s := scale(width)
	v := math.Round(f * s)
	if v > s-1 {
		v = s - 1
	}

	return uint64(int64(v)) & mask(width), nil
}

// SignExtend interprets the low width bits of i as a signed number.
func SignExtend(i uint64, width int) int64 {
	shift := 64 - width
	return int64(i<<shift) >> shift
}

// IntToFloat decodes a width-bit fixed-point word.
func IntToFloat(i uint64, width int) float64 {
	return float64(SignExtend(i&mask(width), width)) / scale(width)
}

// ComplexToInt encodes c into a width-bit word.
func ComplexToInt(c complex128, width int) (uint64, error) {
	if err := checkComplexWidth(width); err != nil {
		return 0, err
	}

	half := width / 2

	re, err := FloatToInt(real(c), half)
	if err != nil {
		return 0, fmt.Errorf("real part: %w", err)
	}

	im, err := FloatToInt(imag(c), half)
	if err != nil {
		return 0, fmt.Errorf("imaginary part: %w", err)
	}

	return re<<half | im, nil
}

// IntToComplex decodes a width-bit word into a complex number.
func IntToComplex(i uint64, width int) complex128 {
	half := width / 2
	re := IntToFloat((i>>half)&mask(half), half)
	im := IntToFloat(i&mask(half), half)

	return complex(re, im)
}

// ComplexesToInt packs a sequence of complex numbers into one wide integer.
// Element k occupies bits [(k+1)*width-1 : k*width].
func ComplexesToInt(cs []complex128, width int) (*big.Int, error) {
	result := new(big.Int)

	for k := len(cs) - 1; k >= 0; k-- {
		v, err := ComplexToInt(cs[k], width)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", k, err)
		}

		result.Lsh(result, uint(width))
		result.Or(result, new(big.Int).SetUint64(v))
	}

	return result, nil
}

// IntToComplexes unpacks n complex numbers from a wide integer.
func IntToComplexes(i *big.Int, width, n int) ([]complex128, error) {
	if err := checkComplexWidth(width); err != nil {
		return nil, err
	}

	words := unpack(i, width, n)
	cs := make([]complex128, n)
	for k, w := range words {
		cs[k] = IntToComplex(w, width)
	}

	return cs, nil
}

// FloatsToInt packs real values, such as filter taps, into one wide integer
// with the same layout as ComplexesToInt.
func FloatsToInt(fs []float64, width int) (*big.Int, error) {
	result := new(big.Int)

	for k := len(fs) - 1; k >= 0; k-- {
		v, err := FloatToInt(fs[k], width)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", k, err)
		}

		result.Lsh(result, uint(width))
		result.Or(result, new(big.Int).SetUint64(v))
	}

	return result, nil
}

// IntToFloats unpacks n real values from a wide integer.
func IntToFloats(i *big.Int, width, n int) ([]float64, error) {
	if err := checkRealWidth(width); err != nil {
		return nil, err
	}

	words := unpack(i, width, n)
	fs := make([]float64, n)
	for k, w := range words {
		fs[k] = IntToFloat(w, width)
	}

	return fs, nil
}

func unpack(i *big.Int, width, n int) []uint64 {
	rest := new(big.Int).Set(i)
	m := new(big.Int).SetUint64(mask(width))
	words := make([]uint64, n)

	for k := 0; k < n; k++ {
		words[k] = new(big.Int).And(rest, m).Uint64()
		rest.Rsh(rest, uint(width))
	}

	return words
}

// Logceil returns ceil(log2(n)). It never returns 0 since a zero-width
// register cannot be declared.
func Logceil(n int) int {
	if n <= 1 {
		return 1
	}

	return bits.Len(uint(n - 1))
}
