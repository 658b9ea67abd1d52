package ann

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Algorithm is a training algorithm.
type Algorithm int

const (
	RPROP Algorithm = iota
	Batch
	Incremental
)

var algorithmNames = map[Algorithm]string{
	RPROP:       "TRAIN_RPROP",
	Batch:       "TRAIN_BATCH",
	Incremental: "TRAIN_INCREMENTAL",
}

// ParseAlgorithm returns the training algorithm with the given name.
func ParseAlgorithm(name string) (Algorithm, error) {
	for a, n := range algorithmNames {
		if n == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown training algorithm '%s'", name)
}

func (a Algorithm) String() string {
	if n, ok := algorithmNames[a]; ok {
		return n
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// RPROP step parameters.
const (
	rpropIncrease     = 1.2
	rpropDecrease     = 0.5
	rpropDeltaMin     = 0.0
	rpropDeltaMax     = 50.0
	rpropDeltaInitial = 0.1
)

// TrainParams controls a training run.
type TrainParams struct {
	Algorithm    Algorithm
	LearningRate float64
	MaxEpochs    int
	DesiredError float64
	// ReportInterval is the number of epochs between reports. Zero disables
	// reports.
	ReportInterval int
	OnReport       func(epoch int, mse float64)
}

// TrainResult summarizes a finished training run.
type TrainResult struct {
	Epochs int
	MSE    float64
}

// Train trains the network on data until MaxEpochs have run or the mean
// squared error of an epoch reaches DesiredError.
func (n *Network) Train(ctx context.Context, data Dataset, p TrainParams) (TrainResult, error) {
	if data.Len() == 0 {
		return TrainResult{}, fmt.Errorf("no training samples")
	}
	for i := range data.Len() {
		in, out := data.Sample(i)
		if len(in) != n.NumInput() || len(out) != n.NumOutput() {
			return TrainResult{}, fmt.Errorf("%w: sample %d is %dx%d, network is %dx%d",
				ErrWidthMismatch, i, len(in), len(out), n.NumInput(), n.NumOutput())
		}
	}

	t := newTrainer(n, p)
	var res TrainResult
	for epoch := 1; epoch <= p.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var mse float64
		if p.Algorithm == Incremental {
			mse = t.incrementalEpoch(data)
		} else {
			mse = t.batchEpoch(data)
		}
		res = TrainResult{Epochs: epoch, MSE: mse}

		done := mse <= p.DesiredError
		if p.OnReport != nil && p.ReportInterval > 0 && (epoch == 1 || epoch%p.ReportInterval == 0 || done) {
			p.OnReport(epoch, mse)
		}
		if done {
			break
		}
	}
	return res, nil
}

type trainer struct {
	net    *Network
	params TrainParams

	slopes     []*mat.Dense
	prevSlopes []*mat.Dense
	steps      []*mat.Dense
}

func newTrainer(n *Network, p TrainParams) *trainer {
	t := &trainer{net: n, params: p}
	for _, w := range n.weights {
		r, c := w.Dims()
		t.slopes = append(t.slopes, mat.NewDense(r, c, nil))
		t.prevSlopes = append(t.prevSlopes, mat.NewDense(r, c, nil))
		steps := mat.NewDense(r, c, nil)
		for i := range r {
			for j := range c {
				steps.Set(i, j, rpropDeltaInitial)
			}
		}
		t.steps = append(t.steps, steps)
	}
	return t
}

// backprop adds the error gradient of one sample to the slopes and returns
// the summed squared error of the sample.
func (t *trainer) backprop(input, target []float64) float64 {
	n := t.net
	acts := n.forward(input)
	last := len(n.weights)

	out := acts[last]
	delta := mat.NewVecDense(out.Len(), nil)
	var sse float64
	for i := range out.Len() {
		y := out.AtVec(i)
		d := y - target[i]
		sse += d * d
		delta.SetVec(i, d*n.output.derivative(y))
	}

	for l := last - 1; l >= 0; l-- {
		t.slopes[l].RankOne(t.slopes[l], 1, delta, withBias(acts[l]))
		if l == 0 {
			break
		}

		rows, cols := n.weights[l].Dims()
		w := n.weights[l].Slice(0, rows, 0, cols-1)
		next := mat.NewVecDense(cols-1, nil)
		next.MulVec(w.T(), delta)
		for i := range next.Len() {
			next.SetVec(i, next.AtVec(i)*n.hidden.derivative(acts[l].AtVec(i)))
		}
		delta = next
	}
	return sse
}

func (t *trainer) resetSlopes() {
	for _, s := range t.slopes {
		s.Zero()
	}
}

func (t *trainer) batchEpoch(data Dataset) float64 {
	t.resetSlopes()
	var sse float64
	for i := range data.Len() {
		in, out := data.Sample(i)
		sse += t.backprop(in, out)
	}

	if t.params.Algorithm == RPROP {
		t.rpropUpdate()
	} else {
		t.gradientUpdate(t.params.LearningRate / float64(data.Len()))
	}
	return sse / float64(data.Len()*t.net.NumOutput())
}

func (t *trainer) incrementalEpoch(data Dataset) float64 {
	var sse float64
	for i := range data.Len() {
		t.resetSlopes()
		in, out := data.Sample(i)
		sse += t.backprop(in, out)
		t.gradientUpdate(t.params.LearningRate)
	}
	return sse / float64(data.Len()*t.net.NumOutput())
}

func (t *trainer) gradientUpdate(rate float64) {
	for l, w := range t.net.weights {
		w.Sub(w, scaled(t.slopes[l], rate))
		t.applyMask(l)
	}
}

func scaled(m *mat.Dense, f float64) *mat.Dense {
	var s mat.Dense
	s.Scale(f, m)
	return &s
}

// rpropUpdate applies iRPROP-: a weight's step grows while its slope keeps
// its sign and shrinks when the sign flips, in which case the weight is
// left unchanged for this epoch.
func (t *trainer) rpropUpdate() {
	for l, w := range t.net.weights {
		rows, cols := w.Dims()
		slopes, prev, steps := t.slopes[l], t.prevSlopes[l], t.steps[l]
		for i := range rows {
			for j := range cols {
				slope := slopes.At(i, j)
				step := steps.At(i, j)
				switch s := prev.At(i, j) * slope; {
				case s > 0:
					step = math.Min(step*rpropIncrease, rpropDeltaMax)
				case s < 0:
					step = math.Max(step*rpropDecrease, rpropDeltaMin)
					slope = 0
				}
				steps.Set(i, j, step)
				prev.Set(i, j, slope)
				w.Set(i, j, w.At(i, j)-sign(slope)*step)
			}
		}
		t.applyMask(l)
	}
}

func (t *trainer) applyMask(l int) {
	if t.net.masks != nil {
		t.net.weights[l].MulElem(t.net.weights[l], t.net.masks[l])
	}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
