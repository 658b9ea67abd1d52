package trainer

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kozaktomas/orchid/internal/ann"
	"github.com/kozaktomas/orchid/internal/codeword"
	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/logging"
	"github.com/kozaktomas/orchid/internal/traindata"
)

// TestANN measures how well a network classifies a test data file.
type TestANN struct {
	cfg    *config.TrainerConfig
	logger *zap.Logger

	net  *ann.Network
	data *traindata.TrainData
}

// TestResult summarizes exported test results.
type TestResult struct {
	Total    int
	Correct  int
	Fraction float64
}

func NewTestANN(cfg *config.TrainerConfig, logger *zap.Logger) (*TestANN, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return &TestANN{cfg: cfg, logger: logging.OrNop(logger)}, nil
}

// Test loads a network and a test data file and returns the mean squared
// error of the network on the data.
func (t *TestANN) Test(annFile, dataFile string) (float64, error) {
	if err := requireFile(annFile); err != nil {
		return 0, err
	}
	if err := requireFile(dataFile); err != nil {
		return 0, err
	}

	net, err := ann.Load(annFile)
	if err != nil {
		return 0, err
	}
	data, err := traindata.ReadFile(dataFile, t.cfg.DependentPrefix())
	if err != nil {
		return 0, fmt.Errorf("failed to process the test data: %w", err)
	}

	t.logger.Info("Testing the neural network", zap.Int("samples", data.Len()))
	mse, err := net.Test(data)
	if err != nil {
		return 0, err
	}
	t.net, t.data = net, data
	t.logger.Info("Mean squared error on test data", zap.Float64("mse", mse))
	return mse, nil
}

// ExportResults writes the classification of every test sample to
// filename. The expected class is decoded from the sample's codeword; a
// sample matches when the best ranked network class equals it. The last row
// holds the fraction of matching samples.
func (t *TestANN) ExportResults(ctx context.Context, filename, dbPath string, maxError float64) (*TestResult, error) {
	if t.data == nil {
		return nil, ErrNoTestData
	}
	classes, err := queryClasses(ctx, t.cfg, dbPath)
	if err != nil {
		return nil, err
	}
	codewords := newCodewords(classes)
	if codewords.Len() != t.data.NumOutput() {
		return nil, fmt.Errorf("%w: %d classes, test data has %d outputs. "+
			"Please make sure the test data matches the class query in the configuration file",
			codeword.ErrLengthMismatch, codewords.Len(), t.data.NumOutput())
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'
	if err := w.Write([]string{"ID", "Class", "Classification", "Match"}); err != nil {
		return nil, err
	}

	result := &TestResult{}
	for i := range t.data.Len() {
		input, output := t.data.Sample(i)
		result.Total++

		expected, err := codewords.Classify(output, maxError)
		if err != nil {
			return nil, err
		}
		if len(expected) != 1 {
			return nil, fmt.Errorf("sample %s: the codeword for a class can only have one positive value", t.data.Labels[i])
		}

		out, err := t.net.Run(input)
		if err != nil {
			return nil, err
		}
		ranked, err := codewords.Classify(out, maxError)
		if err != nil {
			return nil, err
		}

		match := "-"
		if len(ranked) > 0 && ranked[0].Class == expected[0].Class {
			match = "+"
			result.Correct++
		}
		row := []string{t.data.Labels[i], expected[0].Class, codeword.Join(ranked), match}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	if result.Total > 0 {
		result.Fraction = float64(result.Correct) / float64(result.Total)
	}
	if err := w.Write([]string{"", "", "", fmt.Sprintf("%.3f", result.Fraction)}); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	t.logger.Info("Correctly classified", zap.String("percentage", fmt.Sprintf("%.1f%%", result.Fraction*100)))
	t.logger.Info("Testing results written", zap.String("file", filename))
	return result, nil
}
