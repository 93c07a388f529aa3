// Package filterbank checks the polyphase filterbank. Samples arrive
// interleaved across the channels; channel i convolves every i-th sample
// with its own taps, and the first_filter output marks channel 0.
package filterbank

import (
	"context"
	"fmt"
	"maps"
	"math/rand"

	"github.com/sarchlab/sdrbench/build"
	"github.com/sarchlab/sdrbench/config"
	"github.com/sarchlab/sdrbench/fixedpoint"
	"github.com/sarchlab/sdrbench/model"
	"github.com/sarchlab/sdrbench/reference"
	"github.com/sarchlab/sdrbench/testbench"
	valgen "github.com/sarchlab/sdrbench/util"
	"github.com/sarchlab/sdrbench/verify"
	"gonum.org/v1/gonum/floats"
)

// ScaleTaps divides every tap set by the largest absolute sum among them,
// so no channel can overflow. It returns the scaled taps and the factor.
func ScaleTaps(tapss [][]float64) ([][]float64, float64) {
	var maxSum float64
	for _, taps := range tapss {
		maxSum = max(maxSum, floats.Norm(taps, 1))
	}

	scaled := make([][]float64, len(tapss))
	for i, taps := range tapss {
		scaled[i] = make([]float64, len(taps))
		if maxSum > 0 {
			floats.ScaleTo(scaled[i], 1/maxSum, taps)
		}
	}

	return scaled, maxSum
}

// Generate renders the filterbank bench and taps ROM for the given taps and
// compiles them. The shape of the taps overrides any matching entry in
// defines. It returns the executable.
func Generate(
	ctx context.Context,
	gen build.IcarusGenerator,
	name string,
	chantaps [][]float64,
	width, mwidth int,
	defines map[string]any,
) (string, error) {
	if len(chantaps) == 0 || len(chantaps[0]) == 0 {
		return "", fmt.Errorf("filterbank %s: no taps", name)
	}

	nTaps := len(chantaps[0])
	tapWidth := width / 2

	var flat []uint64
	for i, taps := range chantaps {
		if len(taps) != nTaps {
			return "", fmt.Errorf("filterbank %s: channel %d has %d taps, want %d",
				name, i, len(taps), nTaps)
		}

		for j, t := range taps {
			v, err := fixedpoint.FloatToInt(t, tapWidth)
			if err != nil {
				return "", fmt.Errorf("filterbank %s: channel %d tap %d: %w", name, i, j, err)
			}

			flat = append(flat, v)
		}
	}

	merged := maps.Clone(defines)
	if merged == nil {
		merged = make(map[string]any)
	}

	maps.Copy(merged, map[string]any{
		"WIDTH":      width,
		"MWIDTH":     mwidth,
		"N_CHANNELS": len(chantaps),
		"N_TAPS":     nTaps,
	})

	extra := map[string]any{
		"NChannels": len(chantaps),
		"NTaps":     nTaps,
		"TapWidth":  tapWidth,
		"AddrWidth": fixedpoint.Logceil(len(flat)),
		"Taps":      flat,
	}

	return gen.GenerateIcarusExecutable(ctx, "filterbank", "filterbank", "-"+name, merged, extra)
}

// Case is a filterbank stimulus with its taps.
type Case struct {
	verify.Case

	Taps [][]float64
}

func newCase(name string, taps [][]float64, data []complex128, ms []int, mwidth, steps int) Case {
	n := len(taps)

	streams := reference.Deinterleave(data, n)
	expected := make([][]complex128, n)
	for i := range streams {
		expected[i] = reference.Convolve(streams[i], taps[i])
	}

	return Case{
		Case: verify.Case{
			Name:       name,
			Samples:    data,
			Ms:         ms,
			Expected:   reference.Interleave(expected),
			ExpectedMs: ms,
			ExpectedExtra: map[string][]int{
				model.FirstFilter: reference.FirstFilterPattern(n, len(data)/n),
			},
			Width:   config.DefaultWidth,
			MWidth:  mwidth,
			SendNth: config.DefaultSendNth,
			Steps:   steps,
			Places:  verify.DefaultPlaces,
		},
		Taps: taps,
	}
}

// SimpleCase sends a ramp through four channels with trivial taps.
func SimpleCase(rng *rand.Rand) Case {
	taps := [][]float64{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.5, 0.5, 0, 0},
		{0, 0, 0.5, 0.5},
	}

	const nData = 10
	data := valgen.Take(valgen.MakeRampGen(nData, len(taps)), nData*len(taps))

	mwidth := 1
	ms := valgen.Take(valgen.MakeMetaGen(rng, mwidth), len(data))

	return newCase("simpletaps", taps, data, ms, mwidth,
		len(data)*config.DefaultSendNth+100)
}

// MediumCase sends random samples through two channels of three taps.
func MediumCase(rng *rand.Rand) Case {
	data := valgen.Take(valgen.MakeUniformGen(rng), 20)

	mwidth := 3
	ms := valgen.Take(valgen.MakeMetaGen(rng, mwidth), len(data))

	taps := [][]float64{
		{0.4, 0.4, 0.1},
		{0, 0.7, 0.3},
	}

	return newCase("mediumtaps", taps, data, ms, mwidth,
		len(data)*config.DefaultSendNth+1000)
}

// RandomCase uses random samples and random taps, scaled to avoid
// overflow.
func RandomCase(rng *rand.Rand) Case {
	const (
		nFilters = 5
		nTaps    = 10
		nData    = 50
	)

	data := valgen.Take(valgen.MakeUniformGen(rng), nData*nFilters)

	mwidth := 7
	ms := valgen.Take(valgen.MakeMetaGen(rng, mwidth), len(data))

	taps := make([][]float64, nFilters)
	for i := range taps {
		taps[i] = make([]float64, nTaps)
		for j := range taps[i] {
			taps[i][j] = rng.Float64()*2 - 1
		}
	}

	chantaps, _ := ScaleTaps(taps)

	return newCase("randomtaps", chantaps, data, ms, mwidth,
		nData*nFilters*config.DefaultSendNth+1000)
}

// NewTestBench creates the bench for a case on a backend. The returned case
// drops the checks the backend cannot observe.
func NewTestBench(
	ctx context.Context,
	env testbench.Env,
	backend testbench.Backend,
	c Case,
) (testbench.TestBench, verify.Case, error) {
	b := env.Builder().
		WithName(c.Name+"/"+backend.Name()).
		WithWidth(c.Width).
		WithSendNth(c.SendNth).
		WithInput(c.Samples, c.Ms)

	switch backend {
	case testbench.BackendModel, testbench.BackendModelOuter:
		dev, err := config.DeviceBuilder{}.
			WithKind(config.KindFilterbank).
			WithTaps(c.Taps).
			WithWidth(c.Width).
			WithMWidth(c.MWidth).
			WithLatency(env.Settings.ModelLatency).
			WithOuter(backend == testbench.BackendModelOuter).
			Build(c.Name)
		if err != nil {
			return nil, c.Case, err
		}

		tb, err := b.BuildModel(dev)
		if err != nil {
			return nil, c.Case, err
		}

		return tb, caseFor(backend, c), nil
	case testbench.BackendIcarusInner:
		exe, err := Generate(ctx, env.Generator, c.Name, c.Taps, c.Width, c.MWidth,
			env.Settings.UpdatedDefines(nil))
		if err != nil {
			return nil, c.Case, err
		}

		tb, err := b.WithExtraSignals(model.FirstFilter).BuildIcarusInner(exe)
		if err != nil {
			return nil, c.Case, err
		}

		return tb, caseFor(backend, c), nil
	default:
		return nil, c.Case, fmt.Errorf("filterbank on %s: %w", backend.Name(), testbench.ErrUnsupported)
	}
}

func caseFor(backend testbench.Backend, c Case) verify.Case {
	if backend.Stream() {
		return c.WithoutMeta()
	}

	return c.Case
}
