package filterbank_test

import (
	"context"
	"math/rand"
	"os/exec"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/sdrbench/build"
	"github.com/sarchlab/sdrbench/config"
	"github.com/sarchlab/sdrbench/filterbank"
	"github.com/sarchlab/sdrbench/fixedpoint"
	"github.com/sarchlab/sdrbench/model"
	"github.com/sarchlab/sdrbench/testbench"
	"github.com/sarchlab/sdrbench/verify"
)

// recordingGenerator remembers what it was asked to build.
type recordingGenerator struct {
	pkg, module, suffix string
	defines, extra      map[string]any
}

func (g *recordingGenerator) GenerateIcarusExecutable(
	_ context.Context,
	pkg, module, suffix string,
	defines, extra map[string]any,
) (string, error) {
	g.pkg, g.module, g.suffix = pkg, module, suffix
	g.defines, g.extra = defines, extra

	return "/build/" + module + suffix + "/" + module + ".vvp", nil
}

var _ = Describe("ScaleTaps", func() {
	It("should scale by the largest absolute sum", func() {
		scaled, factor := filterbank.ScaleTaps([][]float64{
			{1, -1},
			{0.5, 0.5},
		})

		Expect(factor).To(Equal(2.0))
		Expect(scaled).To(Equal([][]float64{{0.5, -0.5}, {0.25, 0.25}}))
	})

	It("should keep every scaled set within one", func() {
		rng := rand.New(rand.NewSource(0))
		taps := make([][]float64, 5)
		for i := range taps {
			taps[i] = make([]float64, 10)
			for j := range taps[i] {
				taps[i][j] = rng.Float64()*2 - 1
			}
		}

		scaled, _ := filterbank.ScaleTaps(taps)

		for _, ts := range scaled {
			sum := 0.0
			for _, t := range ts {
				if t < 0 {
					t = -t
				}
				sum += t
			}
			Expect(sum).To(BeNumerically("<=", 1+1e-12))
		}
	})

	It("should leave all-zero taps alone", func() {
		scaled, factor := filterbank.ScaleTaps([][]float64{{0, 0}})

		Expect(factor).To(BeZero())
		Expect(scaled).To(Equal([][]float64{{0, 0}}))
	})
})

var _ = Describe("Generate", func() {
	It("should pass the taps ROM and defines to the generator", func() {
		gen := &recordingGenerator{}

		exe, err := filterbank.Generate(context.Background(), gen, "simple",
			[][]float64{{1, 0}, {0.5, -0.5}}, 32, 1, nil)

		Expect(err).NotTo(HaveOccurred())
		Expect(exe).To(Equal("/build/filterbank-simple/filterbank.vvp"))
		Expect(gen.pkg).To(Equal("filterbank"))
		Expect(gen.module).To(Equal("filterbank"))
		Expect(gen.defines).To(Equal(map[string]any{
			"WIDTH": 32, "MWIDTH": 1, "N_CHANNELS": 2, "N_TAPS": 2,
		}))
		Expect(gen.extra["Taps"]).To(Equal([]uint64{0x7fff, 0, 0x4000, 0xc000}))
		Expect(gen.extra["AddrWidth"]).To(Equal(2))
		Expect(gen.extra["TapWidth"]).To(Equal(16))
	})

	It("should keep the settings defines", func() {
		gen := &recordingGenerator{}
		defines := config.Default().UpdatedDefines(map[string]any{
			"TRACE_TAPS": 1,
			"N_TAPS":     99,
		})

		_, err := filterbank.Generate(context.Background(), gen, "defines",
			[][]float64{{0.5, 0.5}}, 32, 3, defines)

		Expect(err).NotTo(HaveOccurred())
		Expect(gen.defines).To(Equal(map[string]any{
			"DEBUG": false, "TRACE_TAPS": 1,
			"WIDTH": 32, "MWIDTH": 3, "N_CHANNELS": 1, "N_TAPS": 2,
		}))
		Expect(defines["N_TAPS"]).To(Equal(99))
	})

	It("should reject ragged taps", func() {
		_, err := filterbank.Generate(context.Background(), &recordingGenerator{},
			"ragged", [][]float64{{1, 0}, {1}}, 32, 1, nil)

		Expect(err).To(MatchError(ContainSubstring("channel 1 has 1 taps")))
	})

	It("should reject taps that do not fit", func() {
		_, err := filterbank.Generate(context.Background(), &recordingGenerator{},
			"big", [][]float64{{2}}, 32, 1, nil)

		Expect(err).To(MatchError(fixedpoint.ErrOutOfRange))
	})
})

var _ = Describe("Cases", func() {
	It("should build the simple case", func() {
		c := filterbank.SimpleCase(rand.New(rand.NewSource(0)))

		Expect(c.Samples).To(HaveLen(40))
		Expect(c.Samples[:5]).To(Equal([]complex128{0, 0, 0, 0, 0.1}))
		Expect(c.Steps).To(Equal(40*2 + 100))
		Expect(c.Expected).To(HaveLen(40))
		Expect(c.ExpectedExtra[model.FirstFilter][:4]).To(Equal([]int{1, 0, 0, 0}))

		// Channel 1 delays by one sample, so its second output is the
		// first input.
		Expect(c.Expected[5]).To(Equal(c.Samples[1]))
	})

	It("should be reproducible from the seed", func() {
		a := filterbank.RandomCase(rand.New(rand.NewSource(0)))
		b := filterbank.RandomCase(rand.New(rand.NewSource(0)))

		Expect(a.Samples).To(Equal(b.Samples))
		Expect(a.Taps).To(Equal(b.Taps))
		Expect(a.Ms).To(Equal(b.Ms))
	})
})

var _ = Describe("QA", func() {
	var env testbench.Env

	BeforeEach(func() {
		env = testbench.NewEnv(config.Default(), nil)
	})

	cases := map[string]func(*rand.Rand) filterbank.Case{
		"simple": filterbank.SimpleCase,
		"medium": filterbank.MediumCase,
		"random": filterbank.RandomCase,
	}

	for name, mk := range cases {
		for _, backend := range []testbench.Backend{
			testbench.BackendModel,
			testbench.BackendModelOuter,
		} {
			It("should pass the "+name+" case on "+backend.Name(), func() {
				c := mk(rand.New(rand.NewSource(0)))

				tb, vc, err := filterbank.NewTestBench(context.Background(), env, backend, c)
				Expect(err).NotTo(HaveOccurred())

				report, err := verify.Run(context.Background(), vc, tb)
				Expect(err).NotTo(HaveOccurred())

				Expect(tb.OutSamples()).To(verify.MatchSamples(c.Expected, c.Places))
				if !backend.Stream() {
					Expect(tb.OutMs()).To(verify.MatchInts(c.ExpectedMs))
					Expect(tb.Extra(model.FirstFilter)).
						To(verify.MatchInts(c.ExpectedExtra[model.FirstFilter]))
				}
				Expect(report.Error()).To(Succeed())
			})
		}
	}

	It("should not offer a message stream build", func() {
		c := filterbank.SimpleCase(rand.New(rand.NewSource(0)))

		_, _, err := filterbank.NewTestBench(context.Background(), env,
			testbench.BackendIcarusOuter, c)

		Expect(err).To(MatchError(testbench.ErrUnsupported))
	})

	It("should pass the simple case in Icarus", func() {
		settings, err := config.Load("")
		Expect(err).NotTo(HaveOccurred())

		if settings.HDLDir == "" {
			Skip("SDRBENCH_HDLDIR is not set")
		}
		if _, err := exec.LookPath(settings.Icarus.Compiler); err != nil {
			Skip("Icarus Verilog is not installed")
		}

		settings.BuildDir = GinkgoT().TempDir()
		store, err := build.NewStore(context.Background(), settings)
		Expect(err).NotTo(HaveOccurred())

		env := testbench.NewEnv(settings, store)
		c := filterbank.SimpleCase(rand.New(rand.NewSource(0)))

		tb, vc, err := filterbank.NewTestBench(context.Background(), env,
			testbench.BackendIcarusInner, c)
		Expect(err).NotTo(HaveOccurred())

		report, err := verify.Run(context.Background(), vc, tb)
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Error()).To(Succeed())
	})
})
