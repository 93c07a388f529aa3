// Command sdrqa runs one QA case against a backend and prints its report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/sarchlab/sdrbench/build"
	"github.com/sarchlab/sdrbench/config"
	"github.com/sarchlab/sdrbench/fft"
	"github.com/sarchlab/sdrbench/filterbank"
	"github.com/sarchlab/sdrbench/testbench"
	"github.com/sarchlab/sdrbench/verify"
	"github.com/tebeka/atexit"
)

var (
	settingsPath = flag.String("config", "", "settings file (YAML)")
	suite        = flag.String("suite", "filterbank-simple",
		"filterbank-simple|filterbank-medium|filterbank-random|dit|stage")
	backendName = flag.String("backend", "model",
		"model|model-outer|icarus-inner|icarus-outer|b100")
	seed       = flag.Int64("seed", 0, "stimulus seed")
	n          = flag.Int("n", fft.DefaultN, "FFT size")
	reportPath = flag.String("report", "", "also write the report to this file")
	tracePath  = flag.String("trace", "", "write the captured trace as parquet")
	logLevel   = flag.String("log-level", "", "debug|info|trace|warn|error")
	jsonLog    = flag.Bool("json-log", false, "log as JSON")
)

type newBenchFunc func(
	context.Context, testbench.Env, testbench.Backend,
) (testbench.TestBench, verify.Case, error)

func filterbankSuite(mk func(*rand.Rand) filterbank.Case) func(*rand.Rand) (newBenchFunc, error) {
	return func(rng *rand.Rand) (newBenchFunc, error) {
		c := mk(rng)

		return func(ctx context.Context, env testbench.Env, b testbench.Backend) (testbench.TestBench, verify.Case, error) {
			return filterbank.NewTestBench(ctx, env, b, c)
		}, nil
	}
}

func fftSuite(mk func(*rand.Rand, int) (fft.Case, error)) func(*rand.Rand) (newBenchFunc, error) {
	return func(rng *rand.Rand) (newBenchFunc, error) {
		c, err := mk(rng, *n)
		if err != nil {
			return nil, err
		}

		return func(ctx context.Context, env testbench.Env, b testbench.Backend) (testbench.TestBench, verify.Case, error) {
			return fft.NewTestBench(ctx, env, b, c)
		}, nil
	}
}

var suites = map[string]func(*rand.Rand) (newBenchFunc, error){
	"filterbank-simple": filterbankSuite(filterbank.SimpleCase),
	"filterbank-medium": filterbankSuite(filterbank.MediumCase),
	"filterbank-random": filterbankSuite(filterbank.RandomCase),
	"dit":               fftSuite(fft.DITCase),
	"stage":             fftSuite(fft.StageCase),
}

func fail(err error) {
	slog.Error(err.Error())
	atexit.Exit(1)
}

func main() {
	flag.Parse()

	settings, err := config.Load(*settingsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(2)
	}

	if *logLevel != "" {
		settings.LogLevel = *logLevel
	}

	level, err := config.ParseLevel(settings.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(2)
	}

	config.SetupLogging(os.Stderr, level, *jsonLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	atexit.Register(stop)

	report, err := run(ctx, settings)
	if err != nil {
		fail(err)
	}

	report.Host = verify.CollectHostInfo(ctx)
	report.WriteReport(os.Stdout)

	if *reportPath != "" {
		if err := report.SaveReportToFile(*reportPath); err != nil {
			fail(err)
		}
	}

	if !report.Passed() {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func run(ctx context.Context, settings config.Settings) (*verify.Report, error) {
	mk, ok := suites[*suite]
	if !ok {
		return nil, fmt.Errorf("unknown suite %q", *suite)
	}

	backend, err := testbench.ParseBackend(*backendName)
	if err != nil {
		return nil, err
	}

	store, err := build.NewStore(ctx, settings)
	if err != nil {
		return nil, err
	}

	env := testbench.NewEnv(settings, store)

	newBench, err := mk(rand.New(rand.NewSource(*seed)))
	if err != nil {
		return nil, err
	}

	start := time.Now()

	tb, c, err := newBench(ctx, env, backend)
	if err != nil {
		return nil, err
	}

	slog.Info("Bench ready", "Bench", tb.Name(), "Build", time.Since(start))

	report, err := verify.Run(ctx, c, tb)
	if err != nil {
		return nil, err
	}

	if *tracePath != "" {
		if err := writeTrace(*tracePath, tb); err != nil {
			return nil, err
		}
	}

	return report, nil
}

func writeTrace(path string, tb testbench.TestBench) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}
	defer f.Close()

	if err := testbench.WriteParquet(f, tb); err != nil {
		return err
	}

	return f.Close()
}
