// Package ann implements a feedforward neural network with sparse
// connections and RPROP, batch and incremental training.
package ann

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// ErrWidthMismatch is returned when a vector does not fit the network.
var ErrWidthMismatch = errors.New("vector width does not match the network")

const initialWeightRange = 0.1

// Dataset is a set of training samples.
type Dataset interface {
	Len() int
	Sample(i int) (input, output []float64)
}

// Config describes the shape of a new network.
type Config struct {
	// Layers holds the neuron count of each layer, input first.
	Layers         []int
	ConnectionRate float64
	Hidden         Activation
	Output         Activation
	// Seed makes the initial weights reproducible. Zero picks a random seed.
	Seed uint64
}

// Network is a fully or sparsely connected feedforward network. Every
// non-input layer has a bias input.
type Network struct {
	layers         []int
	connectionRate float64
	hidden         Activation
	output         Activation

	// weights[l] connects layer l to l+1. It has one row per neuron of
	// layer l+1 and one column per neuron of layer l plus the bias column.
	weights []*mat.Dense
	// masks[l] is 1 for existing connections; nil when fully connected.
	masks []*mat.Dense
}

// New creates a network with uniformly random weights in [-0.1, 0.1].
func New(cfg Config) (*Network, error) {
	if len(cfg.Layers) < 2 {
		return nil, fmt.Errorf("network needs at least 2 layers, got %d", len(cfg.Layers))
	}
	for i, n := range cfg.Layers {
		if n < 1 {
			return nil, fmt.Errorf("layer %d has %d neurons", i, n)
		}
	}
	rate := cfg.ConnectionRate
	if rate <= 0 || rate > 1 {
		return nil, fmt.Errorf("connection rate must be in (0, 1], got %g", rate)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	n := &Network{
		layers:         append([]int(nil), cfg.Layers...),
		connectionRate: rate,
		hidden:         cfg.Hidden,
		output:         cfg.Output,
		weights:        make([]*mat.Dense, len(cfg.Layers)-1),
	}
	if rate < 1 {
		n.masks = make([]*mat.Dense, len(cfg.Layers)-1)
	}

	for l := range n.weights {
		rows, cols := n.layers[l+1], n.layers[l]+1
		w := mat.NewDense(rows, cols, nil)
		for r := range rows {
			for c := range cols {
				w.Set(r, c, (rng.Float64()*2-1)*initialWeightRange)
			}
		}
		n.weights[l] = w

		if n.masks != nil {
			m := sparseMask(rows, cols, rate, rng)
			w.MulElem(w, m)
			n.masks[l] = m
		}
	}
	return n, nil
}

// sparseMask keeps each connection with probability rate. Every neuron
// keeps its bias and at least one input connection.
func sparseMask(rows, cols int, rate float64, rng *rand.Rand) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for r := range rows {
		kept := 0
		for c := range cols - 1 {
			if rng.Float64() < rate {
				m.Set(r, c, 1)
				kept++
			}
		}
		if kept == 0 {
			m.Set(r, rng.IntN(cols-1), 1)
		}
		m.Set(r, cols-1, 1)
	}
	return m
}

// NumInput returns the width of the input layer.
func (n *Network) NumInput() int { return n.layers[0] }

// NumOutput returns the width of the output layer.
func (n *Network) NumOutput() int { return n.layers[len(n.layers)-1] }

// Layers returns the neuron count of each layer.
func (n *Network) Layers() []int { return append([]int(nil), n.layers...) }

// ConnectionRate returns the fraction of connections created.
func (n *Network) ConnectionRate() float64 { return n.connectionRate }

func (n *Network) activation(layer int) Activation {
	if layer == len(n.weights)-1 {
		return n.output
	}
	return n.hidden
}

// Run computes the network output for input.
func (n *Network) Run(input []float64) ([]float64, error) {
	if len(input) != n.NumInput() {
		return nil, fmt.Errorf("%w: input has %d values, network expects %d", ErrWidthMismatch, len(input), n.NumInput())
	}
	acts := n.forward(input)
	return acts[len(acts)-1].RawVector().Data, nil
}

// forward returns the outputs of every layer, input included.
func (n *Network) forward(input []float64) []*mat.VecDense {
	acts := make([]*mat.VecDense, len(n.layers))
	acts[0] = mat.NewVecDense(len(input), append([]float64(nil), input...))

	for l, w := range n.weights {
		in := withBias(acts[l])
		out := mat.NewVecDense(n.layers[l+1], nil)
		out.MulVec(w, in)

		act := n.activation(l)
		raw := out.RawVector()
		for i := 0; i < raw.N; i++ {
			raw.Data[i*raw.Inc] = act.apply(raw.Data[i*raw.Inc])
		}
		acts[l+1] = out
	}
	return acts
}

func withBias(v *mat.VecDense) *mat.VecDense {
	n := v.Len()
	data := make([]float64, n+1)
	for i := range n {
		data[i] = v.AtVec(i)
	}
	data[n] = 1
	return mat.NewVecDense(n+1, data)
}

// Test returns the mean squared error of the network on data.
func (n *Network) Test(data Dataset) (float64, error) {
	if data.Len() == 0 {
		return 0, nil
	}
	var sum float64
	for i := range data.Len() {
		input, target := data.Sample(i)
		if len(target) != n.NumOutput() {
			return 0, fmt.Errorf("%w: output has %d values, network has %d", ErrWidthMismatch, len(target), n.NumOutput())
		}
		out, err := n.Run(input)
		if err != nil {
			return 0, err
		}
		for j, t := range target {
			d := out[j] - t
			sum += d * d
		}
	}
	return sum / float64(data.Len()*n.NumOutput()), nil
}
