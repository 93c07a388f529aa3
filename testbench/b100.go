package testbench

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sarchlab/sdrbench/build"
)

// B100 sends the stimulus to a B100 running an image and reads the message
// stream back.
type B100 struct {
	bench

	image  string
	loader []string
	runner build.Runner
}

// Run loads the image and streams the stimulus through it. The loader
// decides how long to listen; steps is passed on as {steps}.
func (tb *B100) Run(ctx context.Context, steps int) error {
	if len(tb.loader) == 0 {
		return fmt.Errorf("%s: %w: b100 loader command", tb.name, build.ErrNotConfigured)
	}

	args := build.Expand(tb.loader, map[string]string{
		"image": tb.image,
		"steps": strconv.Itoa(steps),
	})

	var stdin, stdout bytes.Buffer
	if err := writeStimulus(&stdin, tb.inData, nil); err != nil {
		return err
	}

	cmd := build.Command{
		Name:   args[0],
		Args:   args[1:],
		Stdin:  &stdin,
		Stdout: &stdout,
	}

	slog.Debug("Running on B100", "Command", cmd.String())

	if err := tb.runner.Run(ctx, cmd); err != nil {
		return fmt.Errorf("%s: %w", tb.name, err)
	}

	words, err := ParseStream(&stdout)
	if err != nil {
		return fmt.Errorf("%s: %w", tb.name, err)
	}

	return tb.setStream(words)
}
