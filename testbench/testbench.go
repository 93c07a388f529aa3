// Package testbench runs a design under test with a stimulus and collects
// what it produces. The same stimulus can be sent to an Icarus Verilog
// simulation, to a B100 image, or to an in-process behavioral model.
package testbench

import (
	"context"
	"errors"
	"fmt"

	"github.com/sarchlab/sdrbench/build"
	"github.com/sarchlab/sdrbench/config"
	"github.com/sarchlab/sdrbench/dut"
	"github.com/sarchlab/sdrbench/fixedpoint"
	"github.com/sarchlab/sdrbench/message"
	"github.com/sarchlab/sdrbench/model"
)

// ErrTrace is returned when the output of a run cannot be parsed.
var ErrTrace = errors.New("malformed trace")

// A TestBench runs a design with a stimulus and holds the captured output.
type TestBench interface {
	// Name identifies the bench in logs and reports.
	Name() string

	// Run clocks the design for the given number of cycles.
	Run(ctx context.Context, steps int) error

	// OutSamples returns the captured output samples.
	OutSamples() []complex128

	// OutMs returns the captured metadata, one per sample. Benches that
	// read the message stream have none.
	OutMs() []int

	// Extra returns the values of an extra output signal, one per sample.
	Extra(name string) []int

	// Packets returns the debug packets read from the message stream.
	Packets() []message.Packet

	// Capture returns the raw capture.
	Capture() *dut.Capture
}

// Builder creates test benches that share a stimulus.
type Builder struct {
	name         string
	width        int
	sendNth      int
	samples      []complex128
	ms           []int
	runner       build.Runner
	runtime      string
	loader       []string
	extraSignals []string
}

// WithName sets the name used in logs.
func (b Builder) WithName(name string) Builder {
	b.name = name
	return b
}

// WithWidth sets the width of a complex data word.
func (b Builder) WithWidth(width int) Builder {
	b.width = width
	return b
}

// WithSendNth sends a sample on every nth cycle.
func (b Builder) WithSendNth(n int) Builder {
	b.sendNth = n
	return b
}

// WithInput sets the stimulus. ms may be nil.
func (b Builder) WithInput(samples []complex128, ms []int) Builder {
	b.samples = samples
	b.ms = ms
	return b
}

// WithRunner sets how external tools are run.
func (b Builder) WithRunner(r build.Runner) Builder {
	b.runner = r
	return b
}

// WithRuntime sets the Icarus runtime, vvp by default.
func (b Builder) WithRuntime(runtime string) Builder {
	b.runtime = runtime
	return b
}

// WithLoader sets the command that runs a B100 image. Arguments may use
// {image} and {steps}.
func (b Builder) WithLoader(loader []string) Builder {
	b.loader = loader
	return b
}

// WithExtraSignals names the extra columns of an inner bench trace.
func (b Builder) WithExtraSignals(names ...string) Builder {
	b.extraSignals = names
	return b
}

// WithSettings takes the width, cadence and tool commands from settings.
func (b Builder) WithSettings(s config.Settings) Builder {
	b.width = s.DefaultWidth
	b.sendNth = s.DefaultSendNth
	b.runtime = s.Icarus.Runtime
	b.loader = s.B100.Loader
	return b
}

func (b Builder) base(kind string) (bench, error) {
	if b.width == 0 {
		b.width = config.DefaultWidth
	}

	if b.sendNth < 1 {
		b.sendNth = config.DefaultSendNth
	}

	if b.name == "" {
		b.name = kind
	}

	if b.ms != nil && len(b.ms) != len(b.samples) {
		return bench{}, fmt.Errorf("%d metadata values for %d samples",
			len(b.ms), len(b.samples))
	}

	data := make([]uint64, len(b.samples))
	for i, s := range b.samples {
		v, err := fixedpoint.ComplexToInt(s, b.width)
		if err != nil {
			return bench{}, fmt.Errorf("sample %d: %w", i, err)
		}

		data[i] = v
	}

	var ms []uint64
	if b.ms != nil {
		ms = make([]uint64, len(b.ms))
		for i, m := range b.ms {
			if m < 0 {
				return bench{}, fmt.Errorf("metadata %d is negative", i)
			}

			ms[i] = uint64(m)
		}
	}

	return bench{
		name:    b.name,
		width:   b.width,
		sendNth: b.sendNth,
		inData:  data,
		inMs:    ms,
		capture: dut.NewCapture(),
	}, nil
}

func (b Builder) toolRunner() build.Runner {
	if b.runner == nil {
		return build.ExecRunner{}
	}

	return b.runner
}

func (b Builder) vvp() string {
	if b.runtime == "" {
		return "vvp"
	}

	return b.runtime
}

// BuildIcarusInner creates a bench for an executable that exposes the raw
// ports of the design.
func (b Builder) BuildIcarusInner(executable string) (*IcarusInner, error) {
	base, err := b.base("icarus-inner")
	if err != nil {
		return nil, err
	}

	return &IcarusInner{
		bench:        base,
		executable:   executable,
		runtime:      b.vvp(),
		runner:       b.toolRunner(),
		extraSignals: b.extraSignals,
	}, nil
}

// BuildIcarusOuter creates a bench for an executable that wraps the design
// in the message stream.
func (b Builder) BuildIcarusOuter(executable string) (*IcarusOuter, error) {
	base, err := b.base("icarus-outer")
	if err != nil {
		return nil, err
	}

	return &IcarusOuter{
		bench:      base,
		executable: executable,
		runtime:    b.vvp(),
		runner:     b.toolRunner(),
	}, nil
}

// BuildB100 creates a bench for a B100 image.
func (b Builder) BuildB100(image string) (*B100, error) {
	base, err := b.base("b100")
	if err != nil {
		return nil, err
	}

	return &B100{
		bench:  base,
		image:  image,
		loader: b.loader,
		runner: b.toolRunner(),
	}, nil
}

// BuildModel creates a bench around a behavioral model. A model wrapped in
// model.Outer is read back through the message stream.
func (b Builder) BuildModel(device dut.Device) (*Model, error) {
	if b.width == 0 {
		b.width = device.Width()
	}

	if b.width != device.Width() {
		return nil, fmt.Errorf("bench width %d does not match device width %d",
			b.width, device.Width())
	}

	base, err := b.base("model")
	if err != nil {
		return nil, err
	}

	_, stream := device.(*model.Outer)

	return &Model{
		bench:  base,
		device: device,
		stream: stream,
	}, nil
}

// bench holds what all backends share.
type bench struct {
	name    string
	width   int
	sendNth int
	inData  []uint64
	inMs    []uint64

	capture *dut.Capture
	packets []message.Packet
}

func (b *bench) Name() string {
	return b.name
}

func (b *bench) OutSamples() []complex128 {
	out := make([]complex128, len(b.capture.Data))
	for i, d := range b.capture.Data {
		out[i] = fixedpoint.IntToComplex(d, b.width)
	}

	return out
}

func (b *bench) OutMs() []int {
	return toInts(b.capture.Ms)
}

func (b *bench) Extra(name string) []int {
	return toInts(b.capture.Extra[name])
}

func (b *bench) Packets() []message.Packet {
	return b.packets
}

func (b *bench) Capture() *dut.Capture {
	return b.capture
}

// setStream splits message stream words into samples and packets.
func (b *bench) setStream(words []uint64) error {
	samples, packets, err := message.Split(words, b.width)
	if err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}

	// The stream carries no metadata or cycle numbers. Samples are
	// positioned by their index.
	b.capture = dut.NewCapture()
	b.capture.Data = samples
	for i := range samples {
		b.capture.Positions = append(b.capture.Positions, i)
	}

	b.packets = packets
	for _, p := range packets {
		config.Trace("Debug packet", "Bench", b.name, "Packet", p.String())
	}

	return nil
}

func (b *bench) logErrors() {
	if b.capture.Errors > 0 {
		config.Trace("Design raised its error line",
			"Bench", b.name, "Count", b.capture.Errors)
	}
}

func toInts(vs []uint64) []int {
	if vs == nil {
		return nil
	}

	out := make([]int, len(vs))
	for i, v := range vs {
		out[i] = int(v)
	}

	return out
}
