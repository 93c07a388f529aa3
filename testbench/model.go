package testbench

import (
	"context"
	"fmt"

	"github.com/sarchlab/sdrbench/api"
	"github.com/sarchlab/sdrbench/dut"
	"github.com/sarchlab/sdrbench/model"
)

// Model runs a behavioral model in process, clocked by an api.Driver.
type Model struct {
	bench

	device dut.Device
	stream bool
}

// Run resets the model and clocks it for the given number of cycles.
func (tb *Model) Run(ctx context.Context, steps int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tb.device.Reset()

	capture := dut.NewCapture(tb.device.ExtraSignals()...)

	// Bench names are free-form; akita component names are not.
	driver := api.DriverBuilder{}.Build("Driver")
	driver.RegisterDevice(tb.device)
	driver.FeedIn(tb.inData, tb.inMs, tb.sendNth)
	driver.Collect(capture)

	if err := driver.Run(steps); err != nil {
		return fmt.Errorf("%s: %w", tb.name, err)
	}

	if !tb.stream {
		tb.capture = capture
		tb.logErrors()

		return nil
	}

	if err := tb.setStream(capture.Data); err != nil {
		return err
	}

	for _, p := range tb.packets {
		if p.Sender == model.ErrorSender {
			tb.capture.Errors++
		}
	}

	tb.logErrors()

	return nil
}
