package verify

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/sarchlab/sdrbench/testbench"
)

// A Case is a stimulus together with what the design should produce.
type Case struct {
	Name string

	Samples []complex128
	Ms      []int

	Expected []complex128

	// ExpectedMs and ExpectedExtra are checked only when set.
	ExpectedMs    []int
	ExpectedExtra map[string][]int

	Width   int
	MWidth  int
	SendNth int
	Steps   int
	Places  int
}

// WithoutMeta returns a copy of the case that does not check metadata or
// extra signals, for benches that read the message stream.
func (c Case) WithoutMeta() Case {
	c.ExpectedMs = nil
	c.ExpectedExtra = nil

	return c
}

func (c Case) places() int {
	if c.Places == 0 {
		return DefaultPlaces
	}

	return c.Places
}

// Run runs the bench for the steps of the case and checks the result.
func Run(ctx context.Context, c Case, tb testbench.TestBench) (*Report, error) {
	start := time.Now()

	if err := tb.Run(ctx, c.Steps); err != nil {
		return nil, err
	}

	r := Check(c, tb)
	r.Duration = time.Since(start)

	return r, nil
}

// Check compares what a bench captured with the case.
func Check(c Case, tb testbench.TestBench) *Report {
	r := &Report{
		Case:  c.Name,
		Bench: tb.Name(),
	}

	got := tb.OutSamples()
	r.add(CheckResult{
		Name:     "sample count",
		Passed:   len(got) == len(c.Expected),
		Compared: len(got),
		Detail:   fmt.Sprintf("got %d, want %d", len(got), len(c.Expected)),
	})

	r.add(mismatchResult(
		fmt.Sprintf("samples (%d places)", c.places()),
		min(len(got), len(c.Expected)),
		CompareSamples(got, c.Expected, c.places()),
	))

	if c.ExpectedMs != nil {
		r.add(intsResult("metadata", tb.OutMs(), c.ExpectedMs))
	}

	for _, name := range slices.Sorted(maps.Keys(c.ExpectedExtra)) {
		r.add(intsResult(name, tb.Extra(name), c.ExpectedExtra[name]))
	}

	raised := tb.Capture().Errors
	r.add(CheckResult{
		Name:     "error line",
		Passed:   raised == 0,
		Compared: raised,
		Detail:   fmt.Sprintf("raised %d times", raised),
	})

	return r
}

func intsResult(name string, got, want []int) CheckResult {
	if len(got) != len(want) {
		return CheckResult{
			Name:     name,
			Passed:   false,
			Compared: len(got),
			Detail:   fmt.Sprintf("got %d values, want %d", len(got), len(want)),
		}
	}

	return mismatchResult(name, len(got), CompareInts(got, want))
}

func mismatchResult(name string, compared int, mismatches []Mismatch) CheckResult {
	res := CheckResult{
		Name:       name,
		Passed:     len(mismatches) == 0,
		Compared:   compared,
		Mismatches: mismatches,
	}

	if len(mismatches) > 0 {
		res.Detail = fmt.Sprintf("first mismatch at %d", mismatches[0].Index)
	}

	return res
}
