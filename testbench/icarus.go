package testbench

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sarchlab/sdrbench/build"
	"github.com/sarchlab/sdrbench/dut"
)

// IcarusInner runs an Icarus executable built around the raw ports of a
// design.
type IcarusInner struct {
	bench

	executable   string
	runtime      string
	runner       build.Runner
	extraSignals []string
}

// Run simulates for the given number of cycles.
func (tb *IcarusInner) Run(ctx context.Context, steps int) error {
	f, err := simulate(ctx, tb.runner, tb.runtime, tb.executable, steps, tb.sendNth,
		func(w io.Writer) error { return writeStimulus(w, tb.inData, tb.inMs) })
	if err != nil {
		return fmt.Errorf("%s: %w", tb.name, err)
	}

	capture, err := ParseInnerTrace(bytes.NewReader(f), tb.extraSignals)
	if err != nil {
		return fmt.Errorf("%s: %w", tb.name, err)
	}

	tb.capture = capture
	tb.logErrors()

	return nil
}

// IcarusOuter runs an Icarus executable whose output is the message
// stream.
type IcarusOuter struct {
	bench

	executable string
	runtime    string
	runner     build.Runner
}

// Run simulates for the given number of cycles.
func (tb *IcarusOuter) Run(ctx context.Context, steps int) error {
	f, err := simulate(ctx, tb.runner, tb.runtime, tb.executable, steps, tb.sendNth,
		func(w io.Writer) error { return writeStimulus(w, tb.inData, nil) })
	if err != nil {
		return fmt.Errorf("%s: %w", tb.name, err)
	}

	words, err := ParseStream(bytes.NewReader(f))
	if err != nil {
		return fmt.Errorf("%s: %w", tb.name, err)
	}

	return tb.setStream(words)
}

// simulate writes the stimulus, runs vvp and returns the output file.
func simulate(
	ctx context.Context,
	runner build.Runner,
	runtime, executable string,
	steps, sendNth int,
	stimulus func(io.Writer) error,
) ([]byte, error) {
	vvp, err := runner.LookPath(runtime)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "sdrbench-run-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	inFile := filepath.Join(dir, "in.txt")
	outFile := filepath.Join(dir, "out.txt")

	if err := writeFile(inFile, stimulus); err != nil {
		return nil, err
	}

	var stdout bytes.Buffer
	cmd := build.Command{
		Name: vvp,
		Args: []string{
			executable,
			fmt.Sprintf("+steps=%d", steps),
			"+infile=" + inFile,
			"+outfile=" + outFile,
			fmt.Sprintf("+sendnth=%d", sendNth),
		},
		Stdout: &stdout,
	}

	slog.Debug("Simulating", "Command", cmd.String())

	runErr := runner.Run(ctx, cmd)
	logLines("Simulator output", &stdout)

	if runErr != nil {
		return nil, runErr
	}

	out, err := os.ReadFile(outFile)
	if err != nil {
		return nil, fmt.Errorf("reading simulation output: %w", err)
	}

	return out, nil
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		return err
	}

	if err := w.Flush(); err != nil {
		return err
	}

	return f.Close()
}

// writeStimulus writes one hex line per sample, followed by the metadata
// when ms is not nil.
func writeStimulus(w io.Writer, data, ms []uint64) error {
	for i, d := range data {
		var err error
		if ms == nil {
			_, err = fmt.Fprintf(w, "%x\n", d)
		} else {
			_, err = fmt.Fprintf(w, "%x %x\n", d, ms[i])
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func logLines(msg string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			slog.Debug(msg, "Line", line)
		}
	}
}

// ParseInnerTrace reads the output of an inner bench. Each line holds the
// data word, the metadata and the extra signals in hex. A line holding only
// E marks a cycle on which the design raised its error line. Words are
// positioned by their count among the data lines.
func ParseInnerTrace(r io.Reader, extraSignals []string) (*dut.Capture, error) {
	capture := dut.NewCapture(extraSignals...)
	want := 2 + len(extraSignals)

	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if line == "E" {
			capture.Record(capture.Len(), &dut.Output{Error: true})
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != want {
			return nil, fmt.Errorf("%w: line %d has %d fields, want %d",
				ErrTrace, lineNo, len(fields), want)
		}

		values, err := parseHex(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrTrace, lineNo, err)
		}

		out := &dut.Output{Valid: true, Data: values[0], M: values[1]}
		if len(extraSignals) > 0 {
			out.Extra = make(map[string]uint64, len(extraSignals))
			for i, name := range extraSignals {
				out.Extra[name] = values[2+i]
			}
		}

		capture.Record(capture.Len(), out)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return capture, nil
}

// ParseStream reads one hex message stream word per line.
func ParseStream(r io.Reader) ([]uint64, error) {
	var words []uint64

	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		w, err := strconv.ParseUint(line, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrTrace, lineNo, err)
		}

		words = append(words, w)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return words, nil
}

func parseHex(fields []string) ([]uint64, error) {
	values := make([]uint64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 16, 64)
		if err != nil {
			// Icarus prints undriven bits as x or z.
			return nil, fmt.Errorf("field %d %q: %w", i, f, err)
		}

		values[i] = v
	}

	return values, nil
}
