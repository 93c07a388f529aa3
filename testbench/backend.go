package testbench

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sarchlab/sdrbench/build"
	"github.com/sarchlab/sdrbench/config"
)

// ErrUnsupported is returned when a design has no build for a backend.
var ErrUnsupported = errors.New("backend not supported for this design")

// Backend selects where a case runs.
type Backend int

const (
	BackendModel Backend = iota
	BackendModelOuter
	BackendIcarusInner
	BackendIcarusOuter
	BackendB100
)

var backendNames = map[Backend]string{
	BackendModel:       "model",
	BackendModelOuter:  "model-outer",
	BackendIcarusInner: "icarus-inner",
	BackendIcarusOuter: "icarus-outer",
	BackendB100:        "b100",
}

// Name returns the name of the backend.
func (b Backend) Name() string {
	name, ok := backendNames[b]
	if !ok {
		panic("invalid backend")
	}

	return name
}

// Stream reports whether the backend reads the message stream, which
// carries no metadata or extra signals.
func (b Backend) Stream() bool {
	return b == BackendModelOuter || b == BackendIcarusOuter || b == BackendB100
}

// ParseBackend converts a backend name.
func ParseBackend(s string) (Backend, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for b, name := range backendNames {
		if name == s {
			return b, nil
		}
	}

	return 0, fmt.Errorf("unknown backend %q", s)
}

// Env is what the QA packages need to build benches.
type Env struct {
	Settings  config.Settings
	Generator *build.Generator
	Runner    build.Runner
}

// NewEnv creates an environment whose generator caches in store.
func NewEnv(s config.Settings, store build.Store) Env {
	runner := build.ExecRunner{}

	return Env{
		Settings: s,
		Generator: build.GeneratorBuilder{}.
			WithSettings(s).
			WithRunner(runner).
			WithStore(store).
			Build(),
		Runner: runner,
	}
}

// Builder returns a bench builder set up from the environment.
func (e Env) Builder() Builder {
	return Builder{}.WithSettings(e.Settings).WithRunner(e.Runner)
}
