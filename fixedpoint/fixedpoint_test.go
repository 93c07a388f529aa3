package fixedpoint_test

import (
	"fmt"
	"math/big"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/sdrbench/fixedpoint"
)

var _ = Describe("Real values", func() {
	DescribeTable("encoding",
		func(f float64, width int, want uint64) {
			got, err := fixedpoint.FloatToInt(f, width)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("zero", 0.0, 16, uint64(0)),
		Entry("half", 0.5, 16, uint64(0x4000)),
		Entry("minus half", -0.5, 16, uint64(0xC000)),
		Entry("minus one", -1.0, 16, uint64(0x8000)),
		Entry("one saturates", 1.0, 16, uint64(0x7FFF)),
		Entry("narrow", -0.25, 4, uint64(0xE)),
	)

	It("should reject values outside [-1, 1]", func() {
		_, err := fixedpoint.FloatToInt(1.5, 16)
		Expect(err).To(MatchError(fixedpoint.ErrOutOfRange))

		_, err = fixedpoint.FloatToInt(-1.01, 16)
		Expect(err).To(MatchError(fixedpoint.ErrOutOfRange))
	})

	It("should reject impossible widths", func() {
		_, err := fixedpoint.FloatToInt(0.1, 1)
		Expect(err).To(MatchError(fixedpoint.ErrBadWidth))
	})

	It("should decode with sign extension", func() {
		Expect(fixedpoint.IntToFloat(0xC000, 16)).To(Equal(-0.5))
		Expect(fixedpoint.IntToFloat(0x4000, 16)).To(Equal(0.5))
		Expect(fixedpoint.IntToFloat(0x8000, 16)).To(Equal(-1.0))
		Expect(fixedpoint.SignExtend(0xF, 4)).To(Equal(int64(-1)))
	})

	It("should round trip within one LSB", func() {
		for _, f := range []float64{-0.999, -0.3333, 0, 0.1, 0.77777} {
			i, err := fixedpoint.FloatToInt(f, 16)
			Expect(err).NotTo(HaveOccurred())
			Expect(fixedpoint.IntToFloat(i, 16)).To(BeNumerically("~", f, 1.0/32768))
		}
	})
})

var _ = Describe("Complex values", func() {
	It("should put the real part in the upper half", func() {
		got, err := fixedpoint.ComplexToInt(complex(0.5, -0.5), 32)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(uint64(0x4000C000)))
	})

	It("should decode both halves", func() {
		c := fixedpoint.IntToComplex(0x4000C000, 32)
		Expect(real(c)).To(Equal(0.5))
		Expect(imag(c)).To(Equal(-0.5))
	})

	It("should reject odd widths", func() {
		_, err := fixedpoint.ComplexToInt(0, 31)
		Expect(err).To(MatchError(fixedpoint.ErrBadWidth))
	})

	It("should report which part is out of range", func() {
		_, err := fixedpoint.ComplexToInt(complex(0, 2), 32)
		Expect(err).To(MatchError(fixedpoint.ErrOutOfRange))
		Expect(err.Error()).To(ContainSubstring("imaginary"))
	})

	It("should pack element zero into the lowest slot", func() {
		packed, err := fixedpoint.ComplexesToInt(
			[]complex128{complex(0.5, 0), complex(-0.5, 0)}, 32)
		Expect(err).NotTo(HaveOccurred())
		Expect(fmt.Sprintf("%x", packed)).To(Equal("c000000040000000"))

		cs, err := fixedpoint.IntToComplexes(packed, 32, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(cs).To(Equal([]complex128{complex(0.5, 0), complex(-0.5, 0)}))
	})

	It("should pack and unpack taps", func() {
		taps := []float64{0.5, 0, -0.25, 0.125}
		packed, err := fixedpoint.FloatsToInt(taps, 16)
		Expect(err).NotTo(HaveOccurred())
		Expect(packed.Cmp(big.NewInt(0))).To(Equal(1))

		back, err := fixedpoint.IntToFloats(packed, 16, len(taps))
		Expect(err).NotTo(HaveOccurred())
		Expect(back).To(Equal(taps))
	})
})

var _ = DescribeTable("Logceil",
	func(n, want int) {
		Expect(fixedpoint.Logceil(n)).To(Equal(want))
	},
	Entry("one never gives zero", 1, 1),
	Entry("two", 2, 1),
	Entry("three", 3, 2),
	Entry("eight", 8, 3),
	Entry("nine", 9, 4),
)
