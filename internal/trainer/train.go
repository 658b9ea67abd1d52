package trainer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kozaktomas/orchid/internal/ann"
	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/constants"
	"github.com/kozaktomas/orchid/internal/logging"
	"github.com/kozaktomas/orchid/internal/traindata"
)

// Overrides replace network parameters of the trainer configuration.
type Overrides struct {
	Epochs *int
	Error  *float64
}

// MakeANN trains a network on a training data file.
type MakeANN struct {
	cfg       *config.TrainerConfig
	overrides Overrides
	logger    *zap.Logger

	// Seed makes the initial weights reproducible. Zero picks a random seed.
	Seed uint64
}

// TrainSummary describes a trained network.
type TrainSummary struct {
	Epochs int
	MSE    float64 // mean squared error on the training data
}

func NewMakeANN(cfg *config.TrainerConfig, overrides Overrides, logger *zap.Logger) (*MakeANN, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return &MakeANN{cfg: cfg, overrides: overrides, logger: logging.OrNop(logger)}, nil
}

// Params returns the network parameters with the overrides applied.
func (m *MakeANN) Params() config.ANNConfig {
	p := m.cfg.Network()
	if m.overrides.Epochs != nil {
		p.Epochs = *m.overrides.Epochs
	}
	if m.overrides.Error != nil {
		p.Error = *m.overrides.Error
	}
	return p
}

// buildNetwork creates an untrained network for the given widths.
func buildNetwork(p config.ANNConfig, numInput, numOutput int, seed uint64) (*ann.Network, ann.TrainParams, error) {
	hidden, err := ann.ParseActivation(p.ActivationFunctionHidden)
	if err != nil {
		return nil, ann.TrainParams{}, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	output, err := ann.ParseActivation(p.ActivationFunctionOutput)
	if err != nil {
		return nil, ann.TrainParams{}, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	alg, err := ann.ParseAlgorithm(p.TrainingAlgorithm)
	if err != nil {
		return nil, ann.TrainParams{}, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}

	layers := []int{numInput}
	for range p.HiddenLayers {
		layers = append(layers, p.HiddenNeurons)
	}
	layers = append(layers, numOutput)

	net, err := ann.New(ann.Config{
		Layers:         layers,
		ConnectionRate: p.ConnectionRate,
		Hidden:         hidden,
		Output:         output,
		Seed:           seed,
	})
	if err != nil {
		return nil, ann.TrainParams{}, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}

	return net, ann.TrainParams{
		Algorithm:      alg,
		LearningRate:   p.LearningRate,
		MaxEpochs:      p.Epochs,
		DesiredError:   p.Error,
		ReportInterval: p.Epochs / constants.ReportsPerTraining,
	}, nil
}

// Train trains a network on dataFile and saves it to outFile, replacing
// any existing file.
func (m *MakeANN) Train(ctx context.Context, dataFile, outFile string) (*TrainSummary, error) {
	if err := requireFile(dataFile); err != nil {
		return nil, err
	}
	data, err := traindata.ReadFile(dataFile, m.cfg.DependentPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to process the training data: %w", err)
	}

	p := m.Params()
	net, params, err := buildNetwork(p, data.NumInput(), data.NumOutput(), m.Seed)
	if err != nil {
		return nil, err
	}
	params.OnReport = func(epoch int, mse float64) {
		m.logger.Info("Training", zap.Int("epoch", epoch), zap.Float64("mse", mse))
	}

	m.logger.Info("Training network",
		zap.Ints("layers", net.Layers()),
		zap.Stringer("algorithm", params.Algorithm),
		zap.Int("epochs", p.Epochs),
		zap.Float64("desired_error", p.Error),
		zap.Int("samples", data.Len()))

	res, err := net.Train(ctx, data, params)
	if err != nil {
		return nil, err
	}
	if err := net.Save(outFile); err != nil {
		return nil, err
	}
	m.logger.Info("Network saved", zap.String("file", outFile))

	mse, err := net.Test(data)
	if err != nil {
		return nil, err
	}
	m.logger.Info("Mean squared error on training data", zap.Float64("mse", mse))
	return &TrainSummary{Epochs: res.Epochs, MSE: mse}, nil
}
