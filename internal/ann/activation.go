package ann

import (
	"fmt"
	"math"
)

// Activation is a neuron activation function.
type Activation int

const (
	Linear Activation = iota
	Sigmoid
	SigmoidStepwise
	SigmoidSymmetric
	SigmoidSymmetricStepwise
)

// steepness of every sigmoid
const steepness = 0.5

var activationNames = map[Activation]string{
	Linear:                   "LINEAR",
	Sigmoid:                  "SIGMOID",
	SigmoidStepwise:          "SIGMOID_STEPWISE",
	SigmoidSymmetric:         "SIGMOID_SYMMETRIC",
	SigmoidSymmetricStepwise: "SIGMOID_SYMMETRIC_STEPWISE",
}

// ParseActivation returns the activation with the given name.
func ParseActivation(name string) (Activation, error) {
	for a, n := range activationNames {
		if n == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown activation function '%s'", name)
}

func (a Activation) String() string {
	if n, ok := activationNames[a]; ok {
		return n
	}
	return fmt.Sprintf("Activation(%d)", int(a))
}

// apply computes the neuron output for the weighted sum x. The stepwise
// variants are computed exactly.
func (a Activation) apply(x float64) float64 {
	switch a {
	case Sigmoid, SigmoidStepwise:
		return 1 / (1 + math.Exp(-2*steepness*x))
	case SigmoidSymmetric, SigmoidSymmetricStepwise:
		return math.Tanh(steepness * x)
	default:
		return x
	}
}

// derivative returns the slope at the neuron output y.
func (a Activation) derivative(y float64) float64 {
	switch a {
	case Sigmoid, SigmoidStepwise:
		y = clamp(y, 0.01, 0.99)
		return 2 * steepness * y * (1 - y)
	case SigmoidSymmetric, SigmoidSymmetricStepwise:
		y = clamp(y, -0.98, 0.98)
		return steepness * (1 - y*y)
	default:
		return 1
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
