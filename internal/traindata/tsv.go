package traindata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kozaktomas/orchid/internal/constants"
)

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

// Read parses tab separated training data. Columns whose name starts with
// prefix are outputs, the ID column holds labels and every other column
// is an input.
func Read(r io.Reader, prefix string) (*TrainData, error) {
	cr := newReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("training data is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	labelCol := -1
	var inCols, outCols []int
	for i, name := range header {
		switch {
		case name == constants.LabelColumn:
			labelCol = i
		case strings.HasPrefix(name, prefix):
			outCols = append(outCols, i)
		default:
			inCols = append(inCols, i)
		}
	}
	if len(outCols) == 0 {
		return nil, fmt.Errorf("no output columns with prefix '%s' found", prefix)
	}
	width := len(header)

	data := New(len(inCols), len(outCols))
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) == 1 && record[0] == "" {
			continue
		}
		if len(record) != width {
			return nil, fmt.Errorf("line %d: expected %d cells, got %d", line, width, len(record))
		}

		in, err := parseCells(record, inCols, header)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out, err := parseCells(record, outCols, header)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		label := ""
		if labelCol >= 0 {
			label = record[labelCol]
		}
		if err := data.Append(in, out, label); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}

	if err := data.Finalize(); err != nil {
		return nil, err
	}
	return data, nil
}

func parseCells(record []string, cols []int, header []string) ([]float64, error) {
	values := make([]float64, len(cols))
	for j, c := range cols {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[c]), 64)
		if err != nil {
			return nil, fmt.Errorf("column %s: invalid number '%s'", header[c], record[c])
		}
		values[j] = v
	}
	return values, nil
}

// ReadFile reads training data from path.
func ReadFile(path, prefix string) (*TrainData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := Read(f, prefix)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// Write writes the header followed by one row per sample: label, inputs
// and outputs.
func (d *TrainData) Write(w io.Writer, header []string) error {
	if want := 1 + d.numInput + d.numOutput; len(header) != want {
		return fmt.Errorf("%w: header has %d columns, expected %d", ErrWidthMismatch, len(header), want)
	}

	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for i := range d.Inputs {
		row[0] = d.Labels[i]
		for j, v := range d.Inputs[i] {
			row[1+j] = formatFloat(v)
		}
		for j, v := range d.Outputs[i] {
			row[1+d.numInput+j] = formatFloat(v)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes the table to path, replacing any existing file.
func (d *TrainData) WriteFile(path string, header []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := d.Write(f, header); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
