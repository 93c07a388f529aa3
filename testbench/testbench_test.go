package testbench

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/sdrbench/build"
	"github.com/sarchlab/sdrbench/message"
	"github.com/sarchlab/sdrbench/model"
)

func plusArg(args []string, name string) string {
	for _, a := range args {
		if v, ok := strings.CutPrefix(a, "+"+name+"="); ok {
			return v
		}
	}

	return ""
}

var _ = Describe("Trace parsing", func() {
	It("should parse an inner trace with extra signals", func() {
		trace := "40000000 1 1\nE\nc0000000 0 0\n\n"

		capture, err := ParseInnerTrace(strings.NewReader(trace), []string{"first_filter"})

		Expect(err).NotTo(HaveOccurred())
		Expect(capture.Data).To(Equal([]uint64{0x40000000, 0xc0000000}))
		Expect(capture.Ms).To(Equal([]uint64{1, 0}))
		Expect(capture.Extra["first_filter"]).To(Equal([]uint64{1, 0}))
		Expect(capture.Errors).To(Equal(1))
		Expect(capture.Positions).To(Equal([]int{0, 1}))
	})

	It("should reject lines with the wrong number of fields", func() {
		_, err := ParseInnerTrace(strings.NewReader("1 2 3\n"), nil)

		Expect(err).To(MatchError(ErrTrace))
		Expect(err.Error()).To(ContainSubstring("line 1"))
	})

	It("should reject undriven values", func() {
		_, err := ParseInnerTrace(strings.NewReader("xxxxxxxx 0\n"), nil)

		Expect(err).To(MatchError(ErrTrace))
	})

	It("should parse a message stream", func() {
		words, err := ParseStream(strings.NewReader("101000003\n7\n40000000\n"))

		Expect(err).NotTo(HaveOccurred())
		Expect(words).To(Equal([]uint64{0x101000003, 7, 0x40000000}))
	})

	It("should write the stimulus in hex", func() {
		var buf bytes.Buffer

		Expect(writeStimulus(&buf, []uint64{0x4000c000, 0xa}, []uint64{1, 0})).To(Succeed())
		Expect(buf.String()).To(Equal("4000c000 1\na 0\n"))

		buf.Reset()
		Expect(writeStimulus(&buf, []uint64{0xa}, nil)).To(Succeed())
		Expect(buf.String()).To(Equal("a\n"))
	})
})

var _ = Describe("Builder", func() {
	It("should reject samples out of range", func() {
		_, err := Builder{}.
			WithInput([]complex128{complex(1.5, 0)}, nil).
			BuildIcarusOuter("x.vvp")

		Expect(err).To(MatchError(ContainSubstring("sample 0")))
	})

	It("should reject metadata of the wrong length", func() {
		_, err := Builder{}.
			WithInput([]complex128{0, 0}, []int{1}).
			BuildIcarusInner("x.vvp")

		Expect(err).To(HaveOccurred())
	})

	It("should reject a model of another width", func() {
		dev, err := model.NewDIT("dit", 4, 16, 1, 0)
		Expect(err).NotTo(HaveOccurred())

		_, err = Builder{}.WithWidth(32).BuildModel(dev)

		Expect(err).To(MatchError(ContainSubstring("does not match")))
	})
})

var _ = Describe("Icarus benches", func() {
	var (
		mockCtrl *gomock.Controller
		runner   *MockRunner
		ctx      context.Context
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		runner = NewMockRunner(mockCtrl)
		ctx = context.Background()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should run an inner bench through vvp", func() {
		tb, err := Builder{}.
			WithWidth(32).
			WithSendNth(2).
			WithInput([]complex128{complex(0.5, -0.5), 0}, []int{1, 0}).
			WithRunner(runner).
			WithExtraSignals("first_filter").
			BuildIcarusInner("/b/filterbank.vvp")
		Expect(err).NotTo(HaveOccurred())

		runner.EXPECT().LookPath("vvp").Return("/usr/bin/vvp", nil)
		runner.EXPECT().
			Run(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, cmd build.Command) error {
				Expect(cmd.Name).To(Equal("/usr/bin/vvp"))
				Expect(cmd.Args[0]).To(Equal("/b/filterbank.vvp"))
				Expect(cmd.Args).To(ContainElements("+steps=104", "+sendnth=2"))

				in, err := os.ReadFile(plusArg(cmd.Args, "infile"))
				Expect(err).NotTo(HaveOccurred())
				Expect(string(in)).To(Equal("4000c000 1\n0 0\n"))

				io.WriteString(cmd.Stdout, "VCD info: dumping\n")

				return os.WriteFile(plusArg(cmd.Args, "outfile"),
					[]byte("4000c000 1 1\n00000000 0 0\n"), 0o644)
			})

		Expect(tb.Run(ctx, 104)).To(Succeed())

		Expect(tb.OutSamples()).To(Equal([]complex128{complex(0.5, -0.5), 0}))
		Expect(tb.OutMs()).To(Equal([]int{1, 0}))
		Expect(tb.Extra("first_filter")).To(Equal([]int{1, 0}))
		Expect(tb.Packets()).To(BeEmpty())
	})

	It("should split the stream of an outer bench", func() {
		tb, err := Builder{}.
			WithInput([]complex128{complex(0.5, -0.5)}, nil).
			WithRunner(runner).
			WithRuntime("/opt/vvp").
			BuildIcarusOuter("/b/stage.vvp")
		Expect(err).NotTo(HaveOccurred())

		runner.EXPECT().LookPath("/opt/vvp").Return("/opt/vvp", nil)
		runner.EXPECT().
			Run(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, cmd build.Command) error {
				in, err := os.ReadFile(plusArg(cmd.Args, "infile"))
				Expect(err).NotTo(HaveOccurred())
				Expect(string(in)).To(Equal("4000c000\n"))

				return os.WriteFile(plusArg(cmd.Args, "outfile"),
					[]byte("4000c000\n101000003\n7\n"), 0o644)
			})

		Expect(tb.Run(ctx, 100)).To(Succeed())

		Expect(tb.OutSamples()).To(Equal([]complex128{complex(0.5, -0.5)}))
		Expect(tb.OutMs()).To(BeEmpty())
		Expect(tb.Packets()).To(Equal([]message.Packet{{Sender: 3, Payload: []uint64{7}}}))
	})

	It("should report a truncated packet", func() {
		tb, err := Builder{}.WithRunner(runner).BuildIcarusOuter("/b/stage.vvp")
		Expect(err).NotTo(HaveOccurred())

		runner.EXPECT().LookPath(gomock.Any()).Return("vvp", nil)
		runner.EXPECT().
			Run(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, cmd build.Command) error {
				return os.WriteFile(plusArg(cmd.Args, "outfile"),
					[]byte("102000003\n7\n"), 0o644)
			})

		Expect(tb.Run(ctx, 10)).To(MatchError(message.ErrTruncatedPacket))
	})

	It("should fail when vvp is missing", func() {
		tb, err := Builder{}.WithRunner(runner).BuildIcarusInner("/b/x.vvp")
		Expect(err).NotTo(HaveOccurred())

		runner.EXPECT().LookPath("vvp").Return("", build.ErrToolMissing)

		Expect(tb.Run(ctx, 10)).To(MatchError(build.ErrToolMissing))
	})
})

var _ = Describe("B100 bench", func() {
	var (
		mockCtrl *gomock.Controller
		runner   *MockRunner
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		runner = NewMockRunner(mockCtrl)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should need a loader", func() {
		tb, err := Builder{}.WithRunner(runner).BuildB100("/b/stage.bin")
		Expect(err).NotTo(HaveOccurred())

		Expect(tb.Run(context.Background(), 10)).To(MatchError(build.ErrNotConfigured))
	})

	It("should stream through the loader", func() {
		tb, err := Builder{}.
			WithInput([]complex128{complex(0.5, -0.5), complex(-0.5, 0.5)}, nil).
			WithRunner(runner).
			WithLoader([]string{"b100-run", "--image", "{image}", "--cycles", "{steps}"}).
			BuildB100("/b/stage.bin")
		Expect(err).NotTo(HaveOccurred())

		runner.EXPECT().
			Run(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, cmd build.Command) error {
				Expect(cmd.Name).To(Equal("b100-run"))
				Expect(cmd.Args).To(Equal([]string{"--image", "/b/stage.bin", "--cycles", "100000"}))

				in, err := io.ReadAll(cmd.Stdin)
				Expect(err).NotTo(HaveOccurred())
				Expect(string(in)).To(Equal("4000c000\nc0004000\n"))

				_, err = io.WriteString(cmd.Stdout, string(in))
				return err
			})

		Expect(tb.Run(context.Background(), 100000)).To(Succeed())
		Expect(tb.OutSamples()).To(Equal([]complex128{complex(0.5, -0.5), complex(-0.5, 0.5)}))
	})
})

var _ = Describe("Model bench", func() {
	It("should run a filterbank model", func() {
		dev, err := model.NewFilterbank("fb", [][]float64{{1}, {0.5}}, 32, 1, 2)
		Expect(err).NotTo(HaveOccurred())

		tb, err := Builder{}.
			WithSendNth(2).
			WithInput([]complex128{0.5, 0.5, -0.25, 0.25}, []int{1, 0, 0, 1}).
			BuildModel(dev)
		Expect(err).NotTo(HaveOccurred())

		Expect(tb.Run(context.Background(), 4*2+10)).To(Succeed())

		out := tb.OutSamples()
		Expect(out).To(HaveLen(4))
		Expect(real(out[0])).To(BeNumerically("~", 0.5, 1e-4))
		Expect(real(out[1])).To(BeNumerically("~", 0.25, 1e-4))
		Expect(real(out[2])).To(BeNumerically("~", -0.25, 1e-4))
		Expect(real(out[3])).To(BeNumerically("~", 0.125, 1e-4))
		Expect(tb.OutMs()).To(Equal([]int{1, 0, 0, 1}))
		Expect(tb.Extra(model.FirstFilter)).To(Equal([]int{1, 0, 1, 0}))
		Expect(tb.Capture().Errors).To(BeZero())
	})

	It("should accept bench names that are not component names", func() {
		inner, err := model.NewDIT("dit", 4, 32, 0, 0)
		Expect(err).NotTo(HaveOccurred())

		for _, name := range []string{"dit-4/model", "dit-4/model-outer", "lower case"} {
			tb, err := Builder{}.
				WithName(name).
				WithSendNth(1).
				WithInput([]complex128{0.5, 0, 0, 0}, nil).
				BuildModel(model.NewOuter(inner))
			Expect(err).NotTo(HaveOccurred())

			Expect(tb.Run(context.Background(), 20)).To(Succeed())
			Expect(tb.Name()).To(Equal(name))
			Expect(tb.OutSamples()).To(HaveLen(4))
		}
	})

	It("should give the same result when run twice", func() {
		dev, err := model.NewStage("stage", 4, 32, 1, 1)
		Expect(err).NotTo(HaveOccurred())

		tb, err := Builder{}.
			WithSendNth(1).
			WithInput([]complex128{0.5, 0.25, -0.5, 0.125}, nil).
			BuildModel(dev)
		Expect(err).NotTo(HaveOccurred())

		Expect(tb.Run(context.Background(), 20)).To(Succeed())
		first := tb.OutSamples()
		Expect(tb.Run(context.Background(), 20)).To(Succeed())

		Expect(first).To(HaveLen(4))
		Expect(tb.OutSamples()).To(Equal(first))
	})

	It("should read a wrapped model through the message stream", func() {
		inner, err := model.NewFilterbank("fb", [][]float64{{1, 1}}, 32, 0, 0)
		Expect(err).NotTo(HaveOccurred())

		tb, err := Builder{}.
			WithSendNth(1).
			WithInput([]complex128{0.9, 0.9}, nil).
			BuildModel(model.NewOuter(inner))
		Expect(err).NotTo(HaveOccurred())

		Expect(tb.Run(context.Background(), 10)).To(Succeed())

		Expect(tb.OutSamples()).To(HaveLen(2))
		Expect(tb.Packets()).To(HaveLen(1))
		Expect(tb.Packets()[0].Sender).To(Equal(model.ErrorSender))
		Expect(tb.Capture().Errors).To(Equal(1))
	})

	It("should stop on a cancelled context", func() {
		dev, err := model.NewDIT("dit", 4, 32, 0, 0)
		Expect(err).NotTo(HaveOccurred())
		tb, err := Builder{}.BuildModel(dev)
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		Expect(tb.Run(ctx, 10)).To(MatchError(context.Canceled))
	})
})

var _ = Describe("Parquet traces", func() {
	It("should round trip a capture", func() {
		dev, err := model.NewFilterbank("fb", [][]float64{{1}, {1}}, 32, 2, 0)
		Expect(err).NotTo(HaveOccurred())

		tb, err := Builder{}.
			WithSendNth(1).
			WithInput([]complex128{0.5, complex(0, -0.25)}, []int{3, 2}).
			BuildModel(dev)
		Expect(err).NotTo(HaveOccurred())
		Expect(tb.Run(context.Background(), 5)).To(Succeed())

		var buf bytes.Buffer
		Expect(WriteParquet(&buf, tb)).To(Succeed())

		rows, err := ReadParquet(buf.Bytes())

		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
		Expect(rows[0].Index).To(BeEquivalentTo(0))
		Expect(rows[0].Position).To(BeEquivalentTo(0))
		Expect(rows[0].Re).To(BeNumerically("~", 0.5, 1e-4))
		Expect(*rows[0].M).To(BeEquivalentTo(3))
		Expect(*rows[0].FirstFilter).To(BeEquivalentTo(1))
		Expect(rows[1].Im).To(BeNumerically("~", -0.25, 1e-4))
		Expect(*rows[1].FirstFilter).To(BeEquivalentTo(0))
	})
})
