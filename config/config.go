// Package config provides the harness settings and builders for the
// behavioral devices.
package config

import (
	"fmt"
	"strings"

	"github.com/sarchlab/sdrbench/dut"
	"github.com/sarchlab/sdrbench/message"
	"github.com/sarchlab/sdrbench/model"
)

// Kind selects which design a DeviceBuilder creates.
type Kind int

const (
	KindFilterbank Kind = iota
	KindDIT
	KindStage
)

// Name returns the name of the kind.
func (k Kind) Name() string {
	switch k {
	case KindFilterbank:
		return "filterbank"
	case KindDIT:
		return "dit"
	case KindStage:
		return "stage"
	default:
		panic("invalid kind")
	}
}

// ParseKind converts a design name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "filterbank":
		return KindFilterbank, nil
	case "dit":
		return KindDIT, nil
	case "stage":
		return KindStage, nil
	default:
		return 0, fmt.Errorf("unknown design %q", s)
	}
}

// DeviceBuilder can build behavioral devices.
type DeviceBuilder struct {
	kind    Kind
	width   int
	mwidth  int
	n       int
	latency int
	taps    [][]float64
	outer   bool
}

// WithKind sets the design to build.
func (b DeviceBuilder) WithKind(kind Kind) DeviceBuilder {
	b.kind = kind
	return b
}

// WithWidth sets the width of a complex data word.
func (b DeviceBuilder) WithWidth(width int) DeviceBuilder {
	b.width = width
	return b
}

// WithMWidth sets the width of the metadata that travels with each sample.
func (b DeviceBuilder) WithMWidth(mwidth int) DeviceBuilder {
	b.mwidth = mwidth
	return b
}

// WithN sets the FFT length.
func (b DeviceBuilder) WithN(n int) DeviceBuilder {
	b.n = n
	return b
}

// WithLatency sets the number of pipeline cycles between input and output.
func (b DeviceBuilder) WithLatency(latency int) DeviceBuilder {
	b.latency = latency
	return b
}

// WithTaps sets the channel taps of a filterbank.
func (b DeviceBuilder) WithTaps(taps [][]float64) DeviceBuilder {
	b.taps = taps
	return b
}

// WithOuter wraps the device in the message stream wrapper.
func (b DeviceBuilder) WithOuter(outer bool) DeviceBuilder {
	b.outer = outer
	return b
}

// Build creates the device.
func (b DeviceBuilder) Build(name string) (dut.Device, error) {
	width := b.width
	if width == 0 {
		width = DefaultWidth
	}

	var (
		dev dut.Device
		err error
	)

	switch b.kind {
	case KindFilterbank:
		dev, err = model.NewFilterbank(name, b.taps, width, b.mwidth, b.latency)
	case KindDIT:
		dev, err = model.NewDIT(name, b.n, width, b.mwidth, b.latency)
	case KindStage:
		dev, err = model.NewStage(name, b.n, width, b.mwidth, b.latency)
	default:
		return nil, fmt.Errorf("unknown design kind %d", b.kind)
	}

	if err != nil {
		return nil, fmt.Errorf("building %s %q: %w", b.kind.Name(), name, err)
	}

	if b.outer {
		// A stream header holds the packet length above the sender id.
		if width <= message.LengthBits {
			return nil, fmt.Errorf("building %s %q: %w: width %d leaves no room for a stream header",
				b.kind.Name(), name, model.ErrConfig, width)
		}

		dev = model.NewOuter(dev)
	}

	return dev, nil
}
