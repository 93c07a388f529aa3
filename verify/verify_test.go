package verify_test

import (
	"bytes"
	"context"
	"errors"
	"math/cmplx"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/sdrbench/dut"
	"github.com/sarchlab/sdrbench/message"
	"github.com/sarchlab/sdrbench/verify"
)

// fakeBench replays a fixed capture.
type fakeBench struct {
	samples []complex128
	ms      []int
	extra   map[string][]int
	errors  int
	runErr  error
	ran     int
}

func (b *fakeBench) Name() string { return "fake" }

func (b *fakeBench) Run(_ context.Context, steps int) error {
	b.ran = steps
	return b.runErr
}

func (b *fakeBench) OutSamples() []complex128  { return b.samples }
func (b *fakeBench) OutMs() []int              { return b.ms }
func (b *fakeBench) Extra(name string) []int   { return b.extra[name] }
func (b *fakeBench) Packets() []message.Packet { return nil }
func (b *fakeBench) Capture() *dut.Capture     { return &dut.Capture{Errors: b.errors} }

var _ = Describe("AlmostEqual", func() {
	DescribeTable("comparing to decimal places",
		func(a, b complex128, places int, want bool) {
			Expect(verify.AlmostEqual(a, b, places)).To(Equal(want))
		},
		Entry("equal", complex(0.5, 0.5), complex(0.5, 0.5), 3, true),
		Entry("within half a unit", complex(0.5, 0), complex(0.5004, 0), 3, true),
		Entry("beyond half a unit", complex(0.5, 0), complex(0.5006, 0), 3, false),
		Entry("uses the magnitude", complex(0, 0), complex(0.0004, 0.0004), 3, false),
		Entry("fewer places", complex(0.1, 0), complex(0.14, 0), 1, true),
		Entry("infinite", complex(0, 0), cmplx.Inf(), 3, false),
	)
})

var _ = Describe("Check", func() {
	var c verify.Case

	BeforeEach(func() {
		c = verify.Case{
			Name:          "simple",
			Expected:      []complex128{0.1, 0.2, 0.3},
			ExpectedMs:    []int{1, 0, 1},
			ExpectedExtra: map[string][]int{"first_filter": {1, 0, 1}},
			Steps:         106,
		}
	})

	It("should pass a matching capture", func() {
		tb := &fakeBench{
			samples: []complex128{0.1, 0.2001, 0.3},
			ms:      []int{1, 0, 1},
			extra:   map[string][]int{"first_filter": {1, 0, 1}},
		}

		r := verify.Check(c, tb)

		Expect(r.Passed()).To(BeTrue())
		Expect(r.Error()).To(Succeed())
		Expect(r.Checks).To(HaveLen(5))
	})

	It("should fail on a short capture", func() {
		tb := &fakeBench{
			samples: []complex128{0.1, 0.2},
			ms:      []int{1, 0},
			extra:   map[string][]int{"first_filter": {1, 0}},
		}

		r := verify.Check(c, tb)

		Expect(r.Passed()).To(BeFalse())
		Expect(r.Error()).To(MatchError(ContainSubstring("sample count")))
		Expect(r.Error()).To(MatchError(ContainSubstring("metadata")))
	})

	It("should point at the differing sample", func() {
		tb := &fakeBench{
			samples: []complex128{0.1, 0.25, 0.3},
			ms:      []int{1, 0, 1},
			extra:   map[string][]int{"first_filter": {1, 0, 1}},
		}

		r := verify.Check(c, tb)
		failed := r.Failed()

		Expect(failed).To(HaveLen(1))
		Expect(failed[0].Mismatches).To(HaveLen(1))
		Expect(failed[0].Mismatches[0].Index).To(Equal(1))
	})

	It("should flag the error line", func() {
		tb := &fakeBench{
			samples: []complex128{0.1, 0.2, 0.3},
			ms:      []int{1, 0, 1},
			extra:   map[string][]int{"first_filter": {1, 0, 1}},
			errors:  2,
		}

		r := verify.Check(c, tb)

		Expect(r.Error()).To(MatchError(ContainSubstring("error line")))
	})

	It("should skip metadata for stream benches", func() {
		tb := &fakeBench{samples: []complex128{0.1, 0.2, 0.3}}

		r := verify.Check(c.WithoutMeta(), tb)

		Expect(r.Passed()).To(BeTrue())
		Expect(r.Checks).To(HaveLen(3))
	})

	It("should run the bench for the steps of the case", func() {
		tb := &fakeBench{samples: []complex128{0.1, 0.2, 0.3}}

		r, err := verify.Run(context.Background(), c.WithoutMeta(), tb)

		Expect(err).NotTo(HaveOccurred())
		Expect(tb.ran).To(Equal(106))
		Expect(r.Passed()).To(BeTrue())
	})

	It("should return run failures", func() {
		tb := &fakeBench{runErr: errors.New("vvp crashed")}

		_, err := verify.Run(context.Background(), c, tb)

		Expect(err).To(MatchError("vvp crashed"))
	})
})

var _ = Describe("Report", func() {
	It("should render a table with the mismatches", func() {
		tb := &fakeBench{samples: []complex128{0.5, 0}}
		r := verify.Check(verify.Case{
			Name:     "dit",
			Expected: []complex128{0.5, 0.25},
		}, tb)

		var buf bytes.Buffer
		r.WriteReport(&buf)

		Expect(buf.String()).To(ContainSubstring("dit on fake: FAILED"))
		Expect(buf.String()).To(ContainSubstring("samples (3 places)"))
		Expect(buf.String()).To(ContainSubstring("0.25000+0.00000i"))
	})

	It("should save to a file", func() {
		r := verify.Check(verify.Case{Name: "empty"}, &fakeBench{})
		path := filepath.Join(GinkgoT().TempDir(), "report.txt")

		Expect(r.SaveReportToFile(path)).To(Succeed())

		content, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(content)).To(ContainSubstring("empty on fake: PASSED"))
	})

	It("should describe the host", func() {
		info := verify.CollectHostInfo(context.Background())

		Expect(info.String()).To(HavePrefix("host "))
	})
})

var _ = Describe("Matchers", func() {
	It("should match samples to decimal places", func() {
		Expect([]complex128{0.5, complex(0, 0.25)}).
			To(verify.MatchSamples([]complex128{0.5001, complex(0, 0.2499)}, 3))
		Expect([]complex128{0.5}).
			NotTo(verify.MatchSamples([]complex128{0.6}, 3))
		Expect([]complex128{0.5}).
			NotTo(verify.MatchSamples([]complex128{0.5, 0.5}, 3))
	})

	It("should describe the first mismatches", func() {
		m := verify.MatchSamples([]complex128{0.5, 0.5}, 3)

		ok, err := m.Match([]complex128{0.5, 0.4})

		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
		Expect(m.FailureMessage([]complex128{0.5, 0.4})).To(ContainSubstring("[1] got 0.40000"))
	})

	It("should match ints exactly", func() {
		Expect([]int{1, 0, 1}).To(verify.MatchInts([]int{1, 0, 1}))
		Expect([]int{1, 0, 1}).NotTo(verify.MatchInts([]int{1, 1, 1}))
	})

	It("should reject other types", func() {
		_, err := verify.MatchInts([]int{1}).Match([]uint64{1})

		Expect(err).To(HaveOccurred())
	})
})
