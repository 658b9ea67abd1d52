package ann

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"
)

const fileVersion = 1

type networkFile struct {
	Version          int         `json:"version"`
	Layers           []int       `json:"layers"`
	ConnectionRate   float64     `json:"connection_rate"`
	ActivationHidden string      `json:"activation_function_hidden"`
	ActivationOutput string      `json:"activation_function_output"`
	Weights          [][]float64 `json:"weights"`
	Masks            [][]float64 `json:"masks,omitempty"`
}

// Write encodes the network as JSON.
func (n *Network) Write(w io.Writer) error {
	f := networkFile{
		Version:          fileVersion,
		Layers:           n.layers,
		ConnectionRate:   n.connectionRate,
		ActivationHidden: n.hidden.String(),
		ActivationOutput: n.output.String(),
	}
	for _, m := range n.weights {
		f.Weights = append(f.Weights, m.RawMatrix().Data)
	}
	for _, m := range n.masks {
		f.Masks = append(f.Masks, m.RawMatrix().Data)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}

// Save writes the network to path, replacing any existing file.
func (n *Network) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := n.Write(file); err != nil {
		file.Close()
		return fmt.Errorf("writing network: %w", err)
	}
	return file.Close()
}

// Read decodes a network written by Write.
func Read(r io.Reader) (*Network, error) {
	var f networkFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding network: %w", err)
	}
	if f.Version != fileVersion {
		return nil, fmt.Errorf("unsupported network file version %d", f.Version)
	}
	if len(f.Layers) < 2 || len(f.Weights) != len(f.Layers)-1 {
		return nil, fmt.Errorf("network file has %d layers and %d weight matrices", len(f.Layers), len(f.Weights))
	}
	for i, size := range f.Layers {
		if size < 1 {
			return nil, fmt.Errorf("network file layer %d has %d neurons", i, size)
		}
	}
	if f.Masks != nil && len(f.Masks) != len(f.Weights) {
		return nil, fmt.Errorf("network file has %d masks for %d weight matrices", len(f.Masks), len(f.Weights))
	}

	hidden, err := ParseActivation(f.ActivationHidden)
	if err != nil {
		return nil, err
	}
	output, err := ParseActivation(f.ActivationOutput)
	if err != nil {
		return nil, err
	}

	n := &Network{
		layers:         f.Layers,
		connectionRate: f.ConnectionRate,
		hidden:         hidden,
		output:         output,
	}
	for l, data := range f.Weights {
		rows, cols := f.Layers[l+1], f.Layers[l]+1
		if len(data) != rows*cols {
			return nil, fmt.Errorf("weight matrix %d has %d values, expected %d", l, len(data), rows*cols)
		}
		n.weights = append(n.weights, mat.NewDense(rows, cols, data))
		if f.Masks != nil {
			if len(f.Masks[l]) != rows*cols {
				return nil, fmt.Errorf("mask %d has %d values, expected %d", l, len(f.Masks[l]), rows*cols)
			}
			n.masks = append(n.masks, mat.NewDense(rows, cols, f.Masks[l]))
		}
	}
	return n, nil
}

// Load reads a network file.
func Load(path string) (*Network, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	n, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}
