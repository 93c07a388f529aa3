package model

import (
	"fmt"

	"github.com/sarchlab/sdrbench/dut"
)

// FirstFilter is the name of the signal a filterbank raises with the output
// of its first channel.
const FirstFilter = "first_filter"

// Filterbank models the polyphase channelizer. Consecutive input samples go
// to consecutive channels; each channel runs its own FIR filter.
type Filterbank struct {
	name   string
	width  int
	mwidth int

	ar      *arith
	taps    [][]int64
	history [][]cint
	channel int
	pipe    *pipeline
}

// NewFilterbank creates a filterbank with one tap set per channel. Shorter
// tap sets are padded with zeros.
func NewFilterbank(
	name string,
	taps [][]float64,
	width, mwidth, latency int,
) (*Filterbank, error) {
	if err := checkWidth(width); err != nil {
		return nil, err
	}

	if err := checkMWidth(mwidth); err != nil {
		return nil, err
	}

	if len(taps) == 0 {
		return nil, fmt.Errorf("%w: no channels", ErrConfig)
	}

	nTaps := 0
	for _, t := range taps {
		nTaps = max(nTaps, len(t))
	}

	if nTaps == 0 {
		return nil, fmt.Errorf("%w: no taps", ErrConfig)
	}

	f := &Filterbank{
		name:   name,
		width:  width,
		mwidth: mwidth,
		ar:     newArith(width / 2),
		pipe:   newPipeline(latency),
	}

	for ch, ts := range taps {
		q := make([]int64, nTaps)
		for j, t := range ts {
			v, err := f.ar.quantize(t)
			if err != nil {
				return nil, fmt.Errorf("channel %d tap %d: %w", ch, j, err)
			}
			q[j] = v
		}

		f.taps = append(f.taps, q)
		f.history = append(f.history, make([]cint, nTaps))
	}

	return f, nil
}

// Name returns the name of the model.
func (f *Filterbank) Name() string {
	return f.name
}

// Width returns the complex data width.
func (f *Filterbank) Width() int {
	return f.width
}

// ExtraSignals returns the first_filter signal.
func (f *Filterbank) ExtraSignals() []string {
	return []string{FirstFilter}
}

// Clock advances the filterbank by one cycle.
func (f *Filterbank) Clock(in *dut.Input) *dut.Output {
	if in == nil {
		return f.pipe.shift(nil)
	}

	return f.pipe.shift(f.filter(in))
}

func (f *Filterbank) filter(in *dut.Input) *dut.Output {
	ch := f.channel
	f.channel = (f.channel + 1) % len(f.taps)

	hist := f.history[ch]
	copy(hist[1:], hist[:len(hist)-1])
	hist[0] = f.ar.unpack(in.Data)

	var accRe, accIm int64
	for j, t := range f.taps[ch] {
		accRe += hist[j].re * t
		accIm += hist[j].im * t
	}

	f.ar.overflow = false
	y := cint{re: f.ar.rescale(accRe), im: f.ar.rescale(accIm)}

	firstFilter := uint64(0)
	if ch == 0 {
		firstFilter = 1
	}

	return &dut.Output{
		Valid: true,
		Data:  f.ar.pack(y),
		M:     in.M & metaMask(f.mwidth),
		Extra: map[string]uint64{FirstFilter: firstFilter},
		Error: f.ar.overflow,
	}
}

// Reset clears the channel histories and the pipeline.
func (f *Filterbank) Reset() {
	f.channel = 0
	for _, h := range f.history {
		for i := range h {
			h[i] = cint{}
		}
	}
	f.pipe.reset()
}
