package model

import (
	"fmt"

	"github.com/sarchlab/sdrbench/fixedpoint"
)

// cint is a complex number with fixed-point components.
type cint struct {
	re, im int64
}

// arith performs fixed-point arithmetic on component words of a given width.
type arith struct {
	width int
	frac  int
	min   int64
	max   int64

	overflow bool
}

func newArith(width int) *arith {
	return &arith{
		width: width,
		frac:  width - 1,
		min:   -(int64(1) << (width - 1)),
		max:   int64(1)<<(width-1) - 1,
	}
}

func (a *arith) saturate(v int64) int64 {
	if v > a.max {
		a.overflow = true
		return a.max
	}

	if v < a.min {
		a.overflow = true
		return a.min
	}

	return v
}

// roundShift divides by 2^n rounding half up.
func roundShift(v int64, n int) int64 {
	if n == 0 {
		return v
	}

	return (v + int64(1)<<(n-1)) >> n
}

// rescale brings a product accumulator back to component precision.
func (a *arith) rescale(acc int64) int64 {
	return a.saturate(roundShift(acc, a.frac))
}

func (a *arith) mul(x, w cint) cint {
	return cint{
		re: a.rescale(x.re*w.re - x.im*w.im),
		im: a.rescale(x.re*w.im + x.im*w.re),
	}
}

// halfSum returns (x+y)/2 and (x-y)/2.
func (a *arith) halfSum(x, y cint) (cint, cint) {
	sum := cint{
		re: a.saturate(roundShift(x.re+y.re, 1)),
		im: a.saturate(roundShift(x.im+y.im, 1)),
	}
	diff := cint{
		re: a.saturate(roundShift(x.re-y.re, 1)),
		im: a.saturate(roundShift(x.im-y.im, 1)),
	}

	return sum, diff
}

func (a *arith) quantize(f float64) (int64, error) {
	word, err := fixedpoint.FloatToInt(f, a.width)
	if err != nil {
		return 0, err
	}

	return fixedpoint.SignExtend(word, a.width), nil
}

func (a *arith) quantizeComplex(c complex128) (cint, error) {
	re, err := a.quantize(real(c))
	if err != nil {
		return cint{}, fmt.Errorf("real part: %w", err)
	}

	im, err := a.quantize(imag(c))
	if err != nil {
		return cint{}, fmt.Errorf("imaginary part: %w", err)
	}

	return cint{re: re, im: im}, nil
}

// unpack splits a complex data word into its components.
func (a *arith) unpack(word uint64) cint {
	m := uint64(1)<<a.width - 1

	return cint{
		re: fixedpoint.SignExtend(word>>a.width&m, a.width),
		im: fixedpoint.SignExtend(word&m, a.width),
	}
}

// pack joins components into a complex data word.
func (a *arith) pack(c cint) uint64 {
	m := uint64(1)<<a.width - 1

	return (uint64(c.re)&m)<<a.width | uint64(c.im)&m
}
