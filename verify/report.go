package verify

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// MaxListedMismatches limits how many mismatches a report prints per check.
const MaxListedMismatches = 10

// CheckResult is the outcome of one comparison.
type CheckResult struct {
	Name       string
	Passed     bool
	Compared   int
	Mismatches []Mismatch
	Detail     string
}

// Report collects the checks of one case on one bench.
type Report struct {
	Case     string
	Bench    string
	Checks   []CheckResult
	Duration time.Duration
	Host     *HostInfo
}

func (r *Report) add(c CheckResult) {
	r.Checks = append(r.Checks, c)
}

// Passed reports whether every check passed.
func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}

	return true
}

// Failed returns the checks that did not pass.
func (r *Report) Failed() []CheckResult {
	var out []CheckResult
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}

	return out
}

// Error summarizes the failed checks, or returns nil when all passed.
func (r *Report) Error() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}

	names := make([]string, len(failed))
	for i, c := range failed {
		names[i] = c.Name
	}

	return fmt.Errorf("%s on %s: failed %s", r.Case, r.Bench, strings.Join(names, ", "))
}

// WriteReport writes a formatted report to a writer.
func (r *Report) WriteReport(w io.Writer) {
	status := "PASSED"
	if !r.Passed() {
		status = "FAILED"
	}

	summary := table.NewWriter()
	summary.SetTitle(fmt.Sprintf("%s on %s: %s", r.Case, r.Bench, status))
	summary.AppendHeader(table.Row{"Check", "Result", "Compared", "Detail"})

	for _, c := range r.Checks {
		result := "ok"
		if !c.Passed {
			result = "FAIL"
		}

		summary.AppendRow(table.Row{c.Name, result, c.Compared, c.Detail})
	}

	if r.Duration > 0 {
		summary.AppendFooter(table.Row{"", "", "", "took " + r.Duration.Round(time.Millisecond).String()})
	}

	fmt.Fprintln(w, summary.Render())

	for _, c := range r.Checks {
		if len(c.Mismatches) == 0 {
			continue
		}

		mm := table.NewWriter()
		mm.SetTitle(fmt.Sprintf("%s: %d mismatches", c.Name, len(c.Mismatches)))
		mm.AppendHeader(table.Row{"Index", "Got", "Want"})

		for i, m := range c.Mismatches {
			if i == MaxListedMismatches {
				mm.AppendRow(table.Row{"...", "", ""})
				break
			}

			mm.AppendRow(table.Row{m.Index, m.Got, m.Want})
		}

		fmt.Fprintln(w, mm.Render())
	}

	if r.Host != nil {
		fmt.Fprintln(w, r.Host.String())
	}
}

// SaveReportToFile saves the report to a file.
func (r *Report) SaveReportToFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	r.WriteReport(file)

	return file.Close()
}
