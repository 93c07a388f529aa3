package build

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
)

//go:embed templates
var templateFS embed.FS

// design describes how to generate one buildable module.
type design struct {
	// bench is the test bench template wrapped around top.
	bench string
	top   string

	// params maps Verilog parameters of top to expressions.
	params map[string]string

	// templates are rendered next to the bench.
	templates []string

	// packages are the HDL directories under hdldir holding the sources.
	packages []string

	extraSignals []string
}

var designs = map[string]design{
	"fft/dit_inner": {
		bench:    "bench/inner.v.tmpl",
		top:      "dit",
		params:   map[string]string{"N": "`FFT_LEN"},
		packages: []string{"fft"},
	},
	"fft/dit": {
		bench:    "bench/outer.v.tmpl",
		top:      "dit_outer",
		params:   map[string]string{"N": "`FFT_LEN"},
		packages: []string{"fft", "message"},
	},
	"fft/stage_inner": {
		bench:    "bench/inner.v.tmpl",
		top:      "stage",
		params:   map[string]string{"N": "`N"},
		packages: []string{"fft"},
	},
	"fft/stage": {
		bench:    "bench/outer.v.tmpl",
		top:      "stage_outer",
		params:   map[string]string{"N": "`N"},
		packages: []string{"fft", "message"},
	},
	"filterbank/filterbank": {
		bench: "bench/inner.v.tmpl",
		top:   "filterbank",
		params: map[string]string{
			"N_CHANNELS": "`N_CHANNELS",
			"N_TAPS":     "`N_TAPS",
		},
		templates:    []string{"filterbank/taps.v.tmpl"},
		packages:     []string{"filterbank"},
		extraSignals: []string{"first_filter"},
	},
}

func lookupDesign(pkg, module string) (design, error) {
	d, ok := designs[pkg+"/"+module]
	if !ok {
		return design{}, fmt.Errorf("%w: %s/%s", ErrUnknownDesign, pkg, module)
	}

	return d, nil
}

// ExtraSignals returns the extra outputs a design's inner bench reports.
func ExtraSignals(pkg, module string) []string {
	return designs[pkg+"/"+module].extraSignals
}

type templateData struct {
	Module       string
	Suffix       string
	Top          string
	Params       map[string]string
	Defines      map[string]any
	Extra        map[string]any
	ExtraSignals []string
}

var templateFuncs = template.FuncMap{
	"params": func(params map[string]string) string {
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)

		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf(".%s(%s)", name, params[name])
		}

		return strings.Join(parts, ", ")
	},
	"hex": func(v uint64) string {
		return fmt.Sprintf("'h%x", v)
	},
}

// render executes a template into dir and returns the written file.
func render(dir, name string, data templateData) (string, error) {
	src, err := fs.ReadFile(templateFS, "templates/"+name)
	if err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}

	tmpl, err := template.New(name).
		Funcs(templateFuncs).
		Option("missingkey=error").
		Parse(string(src))
	if err != nil {
		return "", fmt.Errorf("parsing template %s: %w", name, err)
	}

	out := filepath.Join(dir, outputName(name, data))

	f, err := os.Create(out)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}

	return out, f.Close()
}

// outputName maps bench/inner.v.tmpl to <module>_tb.v and other templates
// to their base name.
func outputName(name string, data templateData) string {
	base := strings.TrimSuffix(filepath.Base(name), ".tmpl")
	if strings.HasPrefix(name, "bench/") {
		return data.Module + "_tb.v"
	}

	if strings.HasPrefix(name, "b100/") {
		return "b100_" + base
	}

	return base
}
