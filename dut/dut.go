// Package dut defines the clock-level contract between a test bench driver
// and a design under test.
package dut

// Input is the word presented to the design on a cycle where new data is
// offered (in_nd high).
type Input struct {
	Data uint64
	M    uint64
}

// Output is what the design reports on a cycle where it asserts out_nd, or
// where it raises its error line.
type Output struct {
	// Valid marks a cycle with new output data.
	Valid bool
	Data  uint64
	M     uint64

	// Extra holds the values of the design specific signals listed by
	// Device.ExtraSignals, sampled on the same edge.
	Extra map[string]uint64

	Error bool
}

// A Device is a design under test that can be clocked one cycle at a time.
type Device interface {
	Name() string

	// Width returns the bit width of the data bus.
	Width() int

	// ExtraSignals lists the extra output signals captured next to the data.
	ExtraSignals() []string

	// Clock advances the design by one rising edge. in is nil when no new
	// data is offered on this cycle. The returned output is nil when the
	// design has nothing to report.
	Clock(in *Input) *Output

	// Reset returns the design to its power-on state.
	Reset()
}
