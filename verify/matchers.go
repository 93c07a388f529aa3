package verify

import (
	"fmt"

	"github.com/onsi/gomega/format"
	"github.com/onsi/gomega/types"
)

// MatchSamples succeeds when the actual []complex128 has the length of want
// and every sample is almost equal to the one in want.
func MatchSamples(want []complex128, places int) types.GomegaMatcher {
	return &samplesMatcher{want: want, places: places}
}

type samplesMatcher struct {
	want       []complex128
	places     int
	mismatches []Mismatch
}

func (m *samplesMatcher) Match(actual interface{}) (bool, error) {
	got, ok := actual.([]complex128)
	if !ok {
		return false, fmt.Errorf("MatchSamples expects []complex128, got %T", actual)
	}

	if len(got) != len(m.want) {
		return false, nil
	}

	m.mismatches = CompareSamples(got, m.want, m.places)

	return len(m.mismatches) == 0, nil
}

func (m *samplesMatcher) FailureMessage(actual interface{}) string {
	got, _ := actual.([]complex128)
	if len(got) != len(m.want) {
		return fmt.Sprintf("Expected %d samples, got %d", len(m.want), len(got))
	}

	return describeMismatches(m.mismatches, fmt.Sprintf("to %d places", m.places))
}

func (m *samplesMatcher) NegatedFailureMessage(actual interface{}) string {
	return format.Message(actual, "not to match samples", m.want)
}

// MatchInts succeeds when the actual []int equals want, reporting the
// first differing positions.
func MatchInts(want []int) types.GomegaMatcher {
	return &intsMatcher{want: want}
}

type intsMatcher struct {
	want       []int
	mismatches []Mismatch
}

func (m *intsMatcher) Match(actual interface{}) (bool, error) {
	got, ok := actual.([]int)
	if !ok {
		return false, fmt.Errorf("MatchInts expects []int, got %T", actual)
	}

	if len(got) != len(m.want) {
		return false, nil
	}

	m.mismatches = CompareInts(got, m.want)

	return len(m.mismatches) == 0, nil
}

func (m *intsMatcher) FailureMessage(actual interface{}) string {
	got, _ := actual.([]int)
	if len(got) != len(m.want) {
		return fmt.Sprintf("Expected %d values, got %d", len(m.want), len(got))
	}

	return describeMismatches(m.mismatches, "exactly")
}

func (m *intsMatcher) NegatedFailureMessage(actual interface{}) string {
	return format.Message(actual, "not to equal", m.want)
}

func describeMismatches(mismatches []Mismatch, how string) string {
	msg := fmt.Sprintf("Expected values to match %s, %d differ:", how, len(mismatches))
	for i, mm := range mismatches {
		if i == MaxListedMismatches {
			msg += "\n\t..."
			break
		}

		msg += fmt.Sprintf("\n\t[%d] got %s, want %s", mm.Index, mm.Got, mm.Want)
	}

	return msg
}
