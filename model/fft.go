package model

import (
	"fmt"

	"github.com/sarchlab/sdrbench/dut"
	"github.com/sarchlab/sdrbench/reference"
)

// blockFunc transforms one block of n fixed-point samples.
type blockFunc func(block []cint) []cint

// blockDevice collects blocks of n inputs, transforms them, and streams the
// results out one word per cycle. Metadata travels with sample positions.
type blockDevice struct {
	name   string
	width  int
	mwidth int
	n      int

	ar        *arith
	twiddles  []cint
	transform blockFunc

	block []cint
	ms    []uint64
	queue []*dut.Output
	pipe  *pipeline
}

func newBlockDevice(name string, n, width, mwidth, latency int) (*blockDevice, error) {
	if err := checkWidth(width); err != nil {
		return nil, err
	}

	if err := checkMWidth(mwidth); err != nil {
		return nil, err
	}

	if n < 2 || n&(n-1) != 0 {
		return nil, fmt.Errorf("%w: block length %d is not a power of two", ErrConfig, n)
	}

	d := &blockDevice{
		name:   name,
		width:  width,
		mwidth: mwidth,
		n:      n,
		ar:     newArith(width / 2),
		pipe:   newPipeline(latency),
	}

	for k := 0; k < n/2; k++ {
		w, err := d.ar.quantizeComplex(reference.Twiddle(k, n))
		if err != nil {
			return nil, err
		}
		d.twiddles = append(d.twiddles, w)
	}

	return d, nil
}

// butterflies runs the final radix-2 stage on a block of size len(block):
// the first half holds the even transform and the second half the odd one.
func (d *blockDevice) butterflies(block []cint) []cint {
	size := len(block)
	half := size / 2
	step := d.n / size
	out := make([]cint, size)

	for k := 0; k < half; k++ {
		o := d.ar.mul(block[k+half], d.twiddles[k*step])
		out[k], out[k+half] = d.ar.halfSum(block[k], o)
	}

	return out
}

// dit computes the scaled transform recursively out of butterfly stages.
func (d *blockDevice) dit(block []cint) []cint {
	if len(block) == 1 {
		return []cint{block[0]}
	}

	half := len(block) / 2
	evens := make([]cint, 0, half)
	odds := make([]cint, 0, half)
	for i, x := range block {
		if i%2 == 0 {
			evens = append(evens, x)
		} else {
			odds = append(odds, x)
		}
	}

	merged := append(d.dit(evens), d.dit(odds)...)

	return d.butterflies(merged)
}

func (d *blockDevice) Name() string {
	return d.name
}

func (d *blockDevice) Width() int {
	return d.width
}

func (d *blockDevice) ExtraSignals() []string {
	return nil
}

func (d *blockDevice) Clock(in *dut.Input) *dut.Output {
	if in != nil {
		d.accept(in)
	}

	var out *dut.Output
	if len(d.queue) > 0 {
		out = d.queue[0]
		d.queue = d.queue[1:]
	}

	return d.pipe.shift(out)
}

func (d *blockDevice) accept(in *dut.Input) {
	d.block = append(d.block, d.ar.unpack(in.Data))
	d.ms = append(d.ms, in.M&metaMask(d.mwidth))

	if len(d.block) < d.n {
		return
	}

	d.ar.overflow = false
	result := d.transform(d.block)
	overflow := d.ar.overflow

	for i, y := range result {
		d.queue = append(d.queue, &dut.Output{
			Valid: true,
			Data:  d.ar.pack(y),
			M:     d.ms[i],
			Error: overflow && i == 0,
		})
	}

	d.block = d.block[:0]
	d.ms = d.ms[:0]
}

func (d *blockDevice) Reset() {
	d.block = d.block[:0]
	d.ms = d.ms[:0]
	d.queue = nil
	d.pipe.reset()
}

// DIT models the full decimation-in-time FFT. Every stage halves its data,
// so a block of N samples comes out as FFT/N in natural order.
type DIT struct {
	*blockDevice
}

// NewDIT creates an N point DIT FFT model.
func NewDIT(name string, n, width, mwidth, latency int) (*DIT, error) {
	d, err := newBlockDevice(name, n, width, mwidth, latency)
	if err != nil {
		return nil, err
	}

	d.transform = d.dit

	return &DIT{blockDevice: d}, nil
}

// Stage models a single radix-2 stage of size N. The first half of each
// input block is the transform of the even samples, the second half the
// transform of the odd samples.
type Stage struct {
	*blockDevice
}

// NewStage creates an N point stage model.
func NewStage(name string, n, width, mwidth, latency int) (*Stage, error) {
	d, err := newBlockDevice(name, n, width, mwidth, latency)
	if err != nil {
		return nil, err
	}

	d.transform = d.butterflies

	return &Stage{blockDevice: d}, nil
}
