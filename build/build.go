// Package build turns HDL templates and sources into runnable artifacts: an
// Icarus Verilog executable for simulation or a bitstream for the B100.
//
// Every design is rendered into <builddir>/<pkg>/<module><suffix>/. The
// rendered files, the external sources and the defines are hashed together,
// and the hash keys a Store so that an unchanged design is never rebuilt.
package build

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/sarchlab/sdrbench/config"
	"github.com/shirou/gopsutil/mem"
)

var (
	// ErrToolMissing is returned when an external tool cannot be found.
	ErrToolMissing = errors.New("tool not found")

	// ErrUnknownDesign is returned for a module with no build description.
	ErrUnknownDesign = errors.New("unknown design")

	// ErrNotConfigured is returned when a flow has no command configured.
	ErrNotConfigured = errors.New("not configured")

	// ErrInsufficientMemory is returned when the host is too short on
	// memory to run synthesis.
	ErrInsufficientMemory = errors.New("insufficient memory for synthesis")
)

// IcarusGenerator builds simulation executables.
type IcarusGenerator interface {
	GenerateIcarusExecutable(
		ctx context.Context,
		pkg, module, suffix string,
		defines, extra map[string]any,
	) (string, error)
}

// ImageGenerator builds B100 images.
type ImageGenerator interface {
	GenerateB100Image(
		ctx context.Context,
		pkg, module, suffix string,
		defines, extra map[string]any,
	) (string, error)
}

// Generator builds designs.
type Generator struct {
	buildDir string
	hdlDir   string
	icarus   config.IcarusSettings
	b100     config.B100Settings
	runner   Runner
	store    Store

	availableMemory func(ctx context.Context) (uint64, error)
}

// GeneratorBuilder can build generators.
type GeneratorBuilder struct {
	settings config.Settings
	runner   Runner
	store    Store
}

// WithSettings sets the directories and tool commands.
func (b GeneratorBuilder) WithSettings(s config.Settings) GeneratorBuilder {
	b.settings = s
	return b
}

// WithRunner sets how external tools are run.
func (b GeneratorBuilder) WithRunner(r Runner) GeneratorBuilder {
	b.runner = r
	return b
}

// WithStore sets the artifact cache.
func (b GeneratorBuilder) WithStore(s Store) GeneratorBuilder {
	b.store = s
	return b
}

// Build creates the generator.
func (b GeneratorBuilder) Build() *Generator {
	g := &Generator{
		buildDir:        b.settings.BuildDir,
		hdlDir:          b.settings.HDLDir,
		icarus:          b.settings.Icarus,
		b100:            b.settings.B100,
		runner:          b.runner,
		store:           b.store,
		availableMemory: hostAvailableMemory,
	}

	if g.buildDir == "" {
		g.buildDir = config.DefaultBuildDir
	}

	// Tools run inside the design directory, so every path handed to them
	// must be absolute.
	g.buildDir = absPath(g.buildDir)
	if g.hdlDir != "" {
		g.hdlDir = absPath(g.hdlDir)
	}

	if g.runner == nil {
		g.runner = ExecRunner{}
	}

	return g
}

func absPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	return abs
}

func hostAvailableMemory(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}

	return vm.Available, nil
}

// Dir returns the directory a design is generated into.
func (g *Generator) Dir(pkg, module, suffix string) string {
	return filepath.Join(g.buildDir, pkg, module+suffix)
}

// prepared is a design rendered to disk.
type prepared struct {
	dir      string
	files    []string
	includes []string
	data     templateData
}

func (g *Generator) prepare(
	pkg, module, suffix string,
	defines, extra map[string]any,
) (*prepared, error) {
	d, err := lookupDesign(pkg, module)
	if err != nil {
		return nil, err
	}

	p := &prepared{
		dir: g.Dir(pkg, module, suffix),
		data: templateData{
			Module:       module,
			Suffix:       suffix,
			Top:          d.top,
			Params:       d.params,
			Defines:      defines,
			Extra:        extra,
			ExtraSignals: d.extraSignals,
		},
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, err
	}

	// The bench comes first so the synthesis flow can drop it.
	names := append([]string{d.bench}, d.templates...)
	for _, name := range names {
		out, err := render(p.dir, name, p.data)
		if err != nil {
			return nil, err
		}

		p.files = append(p.files, out)
	}

	external, includes, err := g.externalSources(d.packages)
	if err != nil {
		return nil, err
	}

	p.files = append(p.files, external...)
	p.includes = append(includes, p.dir)

	return p, nil
}

func (g *Generator) externalSources(packages []string) (files, includes []string, err error) {
	if g.hdlDir == "" {
		return nil, nil, nil
	}

	for _, pkg := range packages {
		dir := filepath.Join(g.hdlDir, pkg)

		matches, err := filepath.Glob(filepath.Join(dir, "*.v"))
		if err != nil {
			return nil, nil, err
		}

		sort.Strings(matches)
		files = append(files, matches...)
		includes = append(includes, dir)
	}

	return files, includes, nil
}

// key hashes everything that determines the artifact.
func key(flow, module string, files []string, defines map[string]any) (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", flow, module)

	for _, arg := range defineArgs(defines) {
		fmt.Fprintf(h, "%s\x00", arg)
	}

	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			return "", err
		}

		fmt.Fprintf(h, "%s\x00", filepath.Base(name))
		_, err = io.Copy(h, f)
		f.Close()

		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// defineArgs renders defines as compiler flags. A true boolean becomes a
// bare -D, a false one is left out.
func defineArgs(defines map[string]any) []string {
	names := make([]string, 0, len(defines))
	for name := range defines {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]string, 0, len(names))
	for _, name := range names {
		switch v := defines[name].(type) {
		case bool:
			if v {
				args = append(args, "-D"+name)
			}
		default:
			args = append(args, fmt.Sprintf("-D%s=%v", name, v))
		}
	}

	return args
}

// fetch restores a cached artifact to path.
func (g *Generator) fetch(ctx context.Context, key, path string) (bool, error) {
	if g.store == nil {
		return false, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755)
	if err != nil {
		return false, err
	}

	found, err := g.store.Get(ctx, key, f)
	closeErr := f.Close()

	if err != nil || !found {
		os.Remove(path)
		return false, err
	}

	return true, closeErr
}

// save caches an artifact. A failure only costs a rebuild, so it is
// logged rather than returned.
func (g *Generator) save(ctx context.Context, key, path string) {
	if g.store == nil {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		slog.Warn("Cannot cache artifact", "Path", path, "Error", err)
		return
	}
	defer f.Close()

	if err := g.store.Put(ctx, key, f); err != nil {
		slog.Warn("Cannot cache artifact", "Path", path, "Error", err)
	}
}

// GenerateIcarusExecutable renders a design and compiles it with Icarus
// Verilog. It returns the path of the executable.
func (g *Generator) GenerateIcarusExecutable(
	ctx context.Context,
	pkg, module, suffix string,
	defines, extra map[string]any,
) (string, error) {
	p, err := g.prepare(pkg, module, suffix, defines, extra)
	if err != nil {
		return "", err
	}

	exe := filepath.Join(p.dir, module+".vvp")

	k, err := key("icarus", module, p.files, defines)
	if err != nil {
		return "", err
	}

	if found, err := g.fetch(ctx, k, exe); err != nil {
		return "", err
	} else if found {
		slog.Debug("Executable restored from cache", "Module", module, "Key", k[:12])
		return exe, nil
	}

	compiler, err := g.runner.LookPath(g.icarus.Compiler)
	if err != nil {
		return "", err
	}

	args := []string{"-o", exe}
	args = append(args, defineArgs(defines)...)
	for _, inc := range p.includes {
		args = append(args, "-I"+inc)
	}
	args = append(args, p.files...)

	cmd := Command{Name: compiler, Args: args, Dir: p.dir}
	slog.Debug("Compiling", "Module", module, "Command", cmd.String())

	if err := g.runner.Run(ctx, cmd); err != nil {
		return "", fmt.Errorf("compiling %s/%s%s: %w", pkg, module, suffix, err)
	}

	g.save(ctx, k, exe)

	return exe, nil
}

// GenerateB100Image renders a design for the B100 and runs the configured
// synthesis command. It returns the path of the bitstream.
func (g *Generator) GenerateB100Image(
	ctx context.Context,
	pkg, module, suffix string,
	defines, extra map[string]any,
) (string, error) {
	if len(g.b100.Build) == 0 {
		return "", fmt.Errorf("%w: b100 build command", ErrNotConfigured)
	}

	p, err := g.prepare(pkg, module, suffix, defines, extra)
	if err != nil {
		return "", err
	}

	top, err := render(p.dir, "b100/top.v.tmpl", p.data)
	if err != nil {
		return "", err
	}

	// The simulation bench is not synthesizable.
	files := append([]string{top}, p.files[1:]...)

	image := filepath.Join(p.dir, module+".bin")

	k, err := key("b100", module, files, defines)
	if err != nil {
		return "", err
	}

	if found, err := g.fetch(ctx, k, image); err != nil {
		return "", err
	} else if found {
		slog.Debug("Image restored from cache", "Module", module, "Key", k[:12])
		return image, nil
	}

	if err := g.checkMemory(ctx); err != nil {
		return "", err
	}

	srcs := filepath.Join(p.dir, module+".srcs")
	if err := writeLines(srcs, files); err != nil {
		return "", err
	}

	args := Expand(g.b100.Build, map[string]string{
		"dir":    p.dir,
		"module": module,
		"image":  image,
		"srcs":   srcs,
	})

	cmd := Command{Name: args[0], Args: args[1:], Dir: p.dir}
	slog.Info("Synthesizing", "Module", module, "Command", cmd.String())

	if err := g.runner.Run(ctx, cmd); err != nil {
		return "", fmt.Errorf("synthesizing %s/%s%s: %w", pkg, module, suffix, err)
	}

	if _, err := os.Stat(image); err != nil {
		return "", fmt.Errorf("synthesis produced no image: %w", err)
	}

	g.save(ctx, k, image)

	return image, nil
}

func (g *Generator) checkMemory(ctx context.Context) error {
	if g.b100.MinFreeMemoryMB == 0 {
		return nil
	}

	avail, err := g.availableMemory(ctx)
	if err != nil {
		slog.Warn("Cannot read available memory", "Error", err)
		return nil
	}

	if need := g.b100.MinFreeMemoryMB << 20; avail < need {
		return fmt.Errorf("%w: %d MB available, %d MB required",
			ErrInsufficientMemory, avail>>20, g.b100.MinFreeMemoryMB)
	}

	return nil
}

func writeLines(path string, lines []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, l := range lines {
		if _, err := fmt.Fprintln(f, l); err != nil {
			return err
		}
	}

	return f.Close()
}
