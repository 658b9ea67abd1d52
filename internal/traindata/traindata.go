// Package traindata holds labelled input/output vectors and reads and
// writes them as tab separated files.
package traindata

import (
	"errors"
	"fmt"
	"math"
)

// ErrWidthMismatch is returned when a row does not have the width of the table.
var ErrWidthMismatch = errors.New("vector width mismatch")

// TrainData is a table of labelled samples. All inputs share one width and
// all outputs share another.
type TrainData struct {
	Labels  []string
	Inputs  [][]float64
	Outputs [][]float64

	numInput  int
	numOutput int
	finalized bool
}

// New creates an empty table for vectors of the given widths.
func New(numInput, numOutput int) *TrainData {
	return &TrainData{numInput: numInput, numOutput: numOutput}
}

// NumInput returns the input width.
func (d *TrainData) NumInput() int { return d.numInput }

// NumOutput returns the output width.
func (d *TrainData) NumOutput() int { return d.numOutput }

// Len returns the number of samples.
func (d *TrainData) Len() int { return len(d.Inputs) }

// Sample returns the input and output vectors of sample i.
func (d *TrainData) Sample(i int) ([]float64, []float64) {
	return d.Inputs[i], d.Outputs[i]
}

// Append adds a sample.
func (d *TrainData) Append(input, output []float64, label string) error {
	if d.finalized {
		return errors.New("cannot append to finalized training data")
	}
	if len(input) != d.numInput {
		return fmt.Errorf("%w: input has %d values, expected %d", ErrWidthMismatch, len(input), d.numInput)
	}
	if len(output) != d.numOutput {
		return fmt.Errorf("%w: output has %d values, expected %d", ErrWidthMismatch, len(output), d.numOutput)
	}
	d.Labels = append(d.Labels, label)
	d.Inputs = append(d.Inputs, input)
	d.Outputs = append(d.Outputs, output)
	return nil
}

// Finalize checks the table and closes it for appending.
func (d *TrainData) Finalize() error {
	if len(d.Inputs) != len(d.Outputs) || len(d.Inputs) != len(d.Labels) {
		return fmt.Errorf("training data is inconsistent: %d labels, %d inputs, %d outputs",
			len(d.Labels), len(d.Inputs), len(d.Outputs))
	}
	for i := range d.Inputs {
		if len(d.Inputs[i]) != d.numInput || len(d.Outputs[i]) != d.numOutput {
			return fmt.Errorf("%w: sample %d", ErrWidthMismatch, i)
		}
	}
	d.finalized = true
	return nil
}

// RoundInput rounds every input value to the given number of decimals.
func (d *TrainData) RoundInput(decimals int) {
	scale := math.Pow(10, float64(decimals))
	for _, in := range d.Inputs {
		for j, v := range in {
			in[j] = math.Round(v*scale) / scale
		}
	}
}
