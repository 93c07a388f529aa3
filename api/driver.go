// Package api defines the driver that clocks a device under test.
package api

import (
	"errors"
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/sdrbench/dut"
)

// ErrNoDevice is returned when running a driver without a device.
var ErrNoDevice = errors.New("no device registered")

// Driver provides the interface to control a device under test.
type Driver interface {
	// RegisterDevice registers the device that the driver clocks.
	RegisterDevice(device dut.Device)

	// FeedIn queues samples for the device. A sample is offered on every
	// sendNth cycle, together with the metadata at the same index. Queued
	// streams are sent one after another.
	FeedIn(data []uint64, ms []uint64, sendNth int)

	// Collect records every valid output of the device into the capture.
	Collect(capture *dut.Capture)

	// Run clocks the device for the given number of cycles.
	Run(steps int) error

	// Cycle returns the number of cycles clocked so far.
	Cycle() int
}

type driverImpl struct {
	*sim.TickingComponent

	engine sim.Engine
	device dut.Device

	feedInTasks  []*feedInTask
	collectTasks []*collectTask

	cycle int
	steps int
}

// Tick clocks the device for one cycle.
func (d *driverImpl) Tick() (madeProgress bool) {
	if d.cycle >= d.steps {
		return false
	}

	in := d.doFeedIn()
	out := d.device.Clock(in)
	d.doCollect(out)

	d.cycle++

	return d.cycle < d.steps
}

func (d *driverImpl) doFeedIn() *dut.Input {
	d.removeFinishedFeedInTasks()

	if len(d.feedInTasks) == 0 {
		return nil
	}

	task := d.feedInTasks[0]
	if task.wait > 0 {
		task.wait--
		return nil
	}

	in := &dut.Input{Data: task.data[task.round]}
	if task.round < len(task.ms) {
		in.M = task.ms[task.round]
	}

	task.round++
	task.wait = task.sendNth - 1

	return in
}

func (d *driverImpl) removeFinishedFeedInTasks() {
	for i := len(d.feedInTasks) - 1; i >= 0; i-- {
		if d.feedInTasks[i].isFinished() {
			d.feedInTasks = append(
				d.feedInTasks[:i], d.feedInTasks[i+1:]...)
		}
	}
}

func (d *driverImpl) doCollect(out *dut.Output) {
	if out == nil {
		return
	}

	for _, task := range d.collectTasks {
		task.capture.Record(d.cycle, out)
	}
}

// RegisterDevice registers the device that the driver clocks.
func (d *driverImpl) RegisterDevice(device dut.Device) {
	d.device = device
}

type feedInTask struct {
	data    []uint64
	ms      []uint64
	sendNth int
	round   int
	wait    int
}

func (t *feedInTask) isFinished() bool {
	return t.round >= len(t.data)
}

func (d *driverImpl) FeedIn(data []uint64, ms []uint64, sendNth int) {
	if sendNth < 1 {
		sendNth = 1
	}

	task := &feedInTask{
		data:    data,
		ms:      ms,
		sendNth: sendNth,
	}

	d.feedInTasks = append(d.feedInTasks, task)
}

type collectTask struct {
	capture *dut.Capture
}

func (d *driverImpl) Collect(capture *dut.Capture) {
	d.collectTasks = append(d.collectTasks, &collectTask{capture: capture})
}

// Cycle returns the number of cycles clocked so far.
func (d *driverImpl) Cycle() int {
	return d.cycle
}

// Run clocks the device for the given number of cycles.
func (d *driverImpl) Run(steps int) error {
	if d.device == nil {
		return ErrNoDevice
	}

	if steps <= 0 {
		return nil
	}

	d.steps = d.cycle + steps

	// The scheduler ignores TickNow for a time that already ticked.
	if d.cycle == 0 {
		d.TickNow()
	} else {
		d.TickLater()
	}

	if err := d.engine.Run(); err != nil {
		return err
	}

	d.removeFinishedFeedInTasks()
	if pending := d.pendingSamples(); pending > 0 {
		slog.Warn("Input not fully consumed",
			"Driver", d.Name(),
			"Device", d.device.Name(),
			"Pending", pending,
		)
	}

	return nil
}

func (d *driverImpl) pendingSamples() int {
	n := 0
	for _, task := range d.feedInTasks {
		n += len(task.data) - task.round
	}

	return n
}
