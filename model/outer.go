package model

import (
	"github.com/sarchlab/sdrbench/dut"
	"github.com/sarchlab/sdrbench/message"
)

// ErrorSender is the sender id of the packets an Outer emits when the inner
// design raises its error line.
const ErrorSender = 1

// Outer wraps an inner design the way the outer HDL wrappers do: metadata is
// not exposed, and the output is a single stream of sample words mixed with
// debug message packets.
type Outer struct {
	inner dut.Device
	cycle int
	queue []uint64
}

// NewOuter wraps inner.
func NewOuter(inner dut.Device) *Outer {
	return &Outer{inner: inner}
}

// Name returns the name of the inner design.
func (o *Outer) Name() string {
	return o.inner.Name()
}

// Width returns the data width. Stream words are one bit wider.
func (o *Outer) Width() int {
	return o.inner.Width()
}

// ExtraSignals returns nothing; the outer wrapper hides them.
func (o *Outer) ExtraSignals() []string {
	return nil
}

// Clock advances the wrapped design by one cycle and emits at most one
// stream word.
func (o *Outer) Clock(in *dut.Input) *dut.Output {
	var innerIn *dut.Input
	if in != nil {
		innerIn = &dut.Input{Data: in.Data}
	}

	out := o.inner.Clock(innerIn)
	if out != nil {
		if out.Error {
			o.enqueueError()
		}

		if out.Valid {
			o.queue = append(o.queue, out.Data&(uint64(1)<<o.Width()-1))
		}
	}

	o.cycle++

	if len(o.queue) == 0 {
		return nil
	}

	word := o.queue[0]
	o.queue = o.queue[1:]

	return &dut.Output{Valid: true, Data: word}
}

func (o *Outer) enqueueError() {
	words, err := message.Encode(message.Packet{
		Sender:  ErrorSender,
		Payload: []uint64{uint64(o.cycle)},
	}, o.Width())
	if err != nil {
		panic(err)
	}

	o.queue = append(o.queue, words...)
}

// Reset resets the inner design and drops queued words.
func (o *Outer) Reset() {
	o.inner.Reset()
	o.cycle = 0
	o.queue = nil
}
