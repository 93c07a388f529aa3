// Package fft checks the FFT designs: the full decimation-in-time FFT (dit)
// and its final radix-2 stage (stage).
package fft

import (
	"context"
	"fmt"
	"maps"
	"math/rand"
	"strconv"

	"github.com/sarchlab/sdrbench/build"
	"github.com/sarchlab/sdrbench/config"
	"github.com/sarchlab/sdrbench/reference"
	"github.com/sarchlab/sdrbench/testbench"
	valgen "github.com/sarchlab/sdrbench/util"
	"github.com/sarchlab/sdrbench/verify"
)

// DefaultN is the transform size the HDL is synthesized for.
const DefaultN = 8

// Radius bounds the stimulus. The designs halve after every stage, which
// bounds the output magnitude but not its components, so samples must stay
// inside the unit circle.
const Radius = 0.99

// Kind selects the FFT design.
type Kind int

const (
	KindDIT Kind = iota
	KindStage
)

// Name returns the HDL module name of the design.
func (k Kind) Name() string {
	switch k {
	case KindDIT:
		return "dit"
	case KindStage:
		return "stage"
	default:
		panic("invalid fft kind")
	}
}

func (k Kind) lenDefine() string {
	if k == KindDIT {
		return "FFT_LEN"
	}

	return "N"
}

func (k Kind) module(stream bool) string {
	if stream {
		return k.Name()
	}

	return k.Name() + "_inner"
}

func (k Kind) reference() reference.BlockFunc {
	if k == KindDIT {
		return reference.DIT
	}

	return reference.Stage
}

func (k Kind) deviceKind() config.Kind {
	if k == KindDIT {
		return config.KindDIT
	}

	return config.KindStage
}

// Defines returns the HDL defines of an n point design.
func Defines(kind Kind, n int, defines map[string]any) map[string]any {
	out := map[string]any{
		"WIDTH":          config.DefaultWidth,
		kind.lenDefine(): n,
	}

	maps.Copy(out, defines)

	return out
}

func suffix(n int) string {
	return "-" + strconv.Itoa(n)
}

// GenerateDIT compiles the dit design. With stream set it builds the
// message stream wrapper, otherwise the raw ports.
func GenerateDIT(
	ctx context.Context,
	gen build.IcarusGenerator,
	stream bool,
	n int,
	defines map[string]any,
) (string, error) {
	return gen.GenerateIcarusExecutable(ctx, "fft", KindDIT.module(stream),
		suffix(n), Defines(KindDIT, n, defines), nil)
}

// GenerateStage compiles the stage design.
func GenerateStage(
	ctx context.Context,
	gen build.IcarusGenerator,
	stream bool,
	n int,
	defines map[string]any,
) (string, error) {
	return gen.GenerateIcarusExecutable(ctx, "fft", KindStage.module(stream),
		suffix(n), Defines(KindStage, n, defines), nil)
}

// GenerateStageImage synthesizes the stage for the B100.
func GenerateStageImage(
	ctx context.Context,
	gen build.ImageGenerator,
	n int,
	defines map[string]any,
) (string, error) {
	return gen.GenerateB100Image(ctx, "fft", KindStage.Name(),
		suffix(n), Defines(KindStage, n, defines), nil)
}

// Case is an FFT stimulus with its design.
type Case struct {
	verify.Case

	Kind Kind
	N    int
}

func newCase(rng *rand.Rand, kind Kind, n int) (Case, error) {
	nData := 2 * n
	sendNth := config.DefaultSendNth

	data := valgen.Take(valgen.MakeDiskGen(rng, Radius), nData)

	mwidth := 1
	ms := valgen.Take(valgen.MakeMetaGen(rng, mwidth), nData)

	expected, err := reference.Blockwise(kind.reference(), data, n)
	if err != nil {
		return Case{}, fmt.Errorf("%s case: %w", kind.Name(), err)
	}

	return Case{
		Case: verify.Case{
			Name:       fmt.Sprintf("%s%s", kind.Name(), suffix(n)),
			Samples:    data,
			Ms:         ms,
			Expected:   expected,
			ExpectedMs: ms,
			Width:      config.DefaultWidth,
			MWidth:     mwidth,
			SendNth:    sendNth,
			Steps:      nData*sendNth*2 + 1000,
			Places:     verify.DefaultPlaces,
		},
		Kind: kind,
		N:    n,
	}, nil
}

// DITCase sends two blocks of random samples through an n point FFT.
func DITCase(rng *rand.Rand, n int) (Case, error) {
	return newCase(rng, KindDIT, n)
}

// StageCase sends two blocks of random samples through an n point stage.
func StageCase(rng *rand.Rand, n int) (Case, error) {
	return newCase(rng, KindStage, n)
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

	vc := c.Case
	if backend.Stream() {
		vc = c.WithoutMeta()
	}

	defines := env.Settings.UpdatedDefines(map[string]any{
		"WIDTH":  c.Width,
		"MWIDTH": c.MWidth,
	})

	var (
		tb  testbench.TestBench
		err error
	)

	switch backend {
	case testbench.BackendModel, testbench.BackendModelOuter:
		tb, err = buildModel(env, b, backend, c)
	case testbench.BackendIcarusInner, testbench.BackendIcarusOuter:
		stream := backend == testbench.BackendIcarusOuter
		tb, err = buildIcarus(ctx, env, b, stream, c, defines)
	case testbench.BackendB100:
		if c.Kind != KindStage {
			break
		}

		tb, err = buildB100(ctx, env, b, c, defines)
	}

	if err != nil {
		return nil, vc, err
	}

	if tb == nil {
		return nil, vc, fmt.Errorf("%s on %s: %w",
			c.Kind.Name(), backend.Name(), testbench.ErrUnsupported)
	}

	return tb, vc, nil
}

func buildModel(
	env testbench.Env,
	b testbench.Builder,
	backend testbench.Backend,
	c Case,
) (testbench.TestBench, error) {
	dev, err := config.DeviceBuilder{}.
		WithKind(c.Kind.deviceKind()).
		WithN(c.N).
		WithWidth(c.Width).
		WithMWidth(c.MWidth).
		WithLatency(env.Settings.ModelLatency).
		WithOuter(backend == testbench.BackendModelOuter).
		Build(c.Name)
	if err != nil {
		return nil, err
	}

	return b.BuildModel(dev)
}

func buildIcarus(
	ctx context.Context,
	env testbench.Env,
	b testbench.Builder,
	stream bool,
	c Case,
	defines map[string]any,
) (testbench.TestBench, error) {
	generate := GenerateStage
	if c.Kind == KindDIT {
		generate = GenerateDIT
	}

	exe, err := generate(ctx, env.Generator, stream, c.N, defines)
	if err != nil {
		return nil, err
	}

	if stream {
		return b.BuildIcarusOuter(exe)
	}

	return b.BuildIcarusInner(exe)
}

func buildB100(
	ctx context.Context,
	env testbench.Env,
	b testbench.Builder,
	c Case,
	defines map[string]any,
) (testbench.TestBench, error) {
	image, err := GenerateStageImage(ctx, env.Generator, c.N, defines)
	if err != nil {
		return nil, err
	}

	return b.BuildB100(image)
}
