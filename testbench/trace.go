package testbench

import (
	"bytes"
	"io"

	"github.com/parquet-go/parquet-go"
	"github.com/sarchlab/sdrbench/model"
)

// TraceRow is one captured output sample.
type TraceRow struct {
	Index       int64   `parquet:"index"`
	Position    int64   `parquet:"position"`
	Raw         uint64  `parquet:"raw"`
	Re          float64 `parquet:"re"`
	Im          float64 `parquet:"im"`
	M           *int64  `parquet:"m,optional"`
	FirstFilter *int64  `parquet:"first_filter,optional"`
}

// TraceRows converts the capture of a bench into rows.
func TraceRows(tb TestBench) []TraceRow {
	capture := tb.Capture()
	samples := tb.OutSamples()
	ms := tb.OutMs()
	ffs := tb.Extra(model.FirstFilter)

	rows := make([]TraceRow, len(samples))
	for i, s := range samples {
		rows[i] = TraceRow{
			Index: int64(i),
			Raw:   capture.Data[i],
			Re:    real(s),
			Im:    imag(s),
		}

		if i < len(capture.Positions) {
			rows[i].Position = int64(capture.Positions[i])
		}

		if i < len(ms) {
			m := int64(ms[i])
			rows[i].M = &m
		}

		if i < len(ffs) {
			ff := int64(ffs[i])
			rows[i].FirstFilter = &ff
		}
	}

	return rows
}

// WriteParquet writes the capture of a bench as a zstd-compressed parquet
// file.
func WriteParquet(w io.Writer, tb TestBench) error {
	pw := parquet.NewGenericWriter[TraceRow](w, parquet.Compression(&parquet.Zstd))

	if _, err := pw.Write(TraceRows(tb)); err != nil {
		pw.Close()
		return err
	}

	return pw.Close()
}

// ReadParquet reads rows written by WriteParquet.
func ReadParquet(data []byte) ([]TraceRow, error) {
	gr := parquet.NewGenericReader[TraceRow](bytes.NewReader(data))
	defer gr.Close()

	out := make([]TraceRow, 0, gr.NumRows())
	batch := make([]TraceRow, 256)

	for {
		n, err := gr.Read(batch)
		if n > 0 {
			out = append(out, batch[:n]...)
		}

		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, err
		}
	}

	return out, nil
}
