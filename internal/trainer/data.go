package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/constants"
	"github.com/kozaktomas/orchid/internal/features"
	"github.com/kozaktomas/orchid/internal/logging"
	"github.com/kozaktomas/orchid/internal/taxonomy"
	"github.com/kozaktomas/orchid/internal/traindata"
)

// MakeTrainData exports training data for the photos selected by the class
// query of a trainer configuration.
type MakeTrainData struct {
	cfg      *config.TrainerConfig
	basePath string
	dbPath   string
	logger   *zap.Logger

	// Workers is the number of photos processed in parallel.
	Workers int
	// Progress receives the progress bar. Nil disables it.
	Progress io.Writer
}

// ExportResult summarizes a training data export.
type ExportResult struct {
	Photos  int      // photos written
	Classes int      // distinct classes
	Columns int      // input columns
	Failed  []string // photos that could not be read
}

// NewMakeTrainData checks that basePath is a directory and dbPath a file.
func NewMakeTrainData(cfg *config.TrainerConfig, basePath, dbPath string, logger *zap.Logger) (*MakeTrainData, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	if err := requireDir(basePath); err != nil {
		return nil, err
	}
	if err := requireFile(dbPath); err != nil {
		return nil, err
	}
	return &MakeTrainData{
		cfg:      cfg,
		basePath: basePath,
		dbPath:   dbPath,
		logger:   logging.OrNop(logger),
		Workers:  constants.WorkerPoolSize,
		Progress: os.Stderr,
	}, nil
}

// Export writes the training data to filename, replacing any existing file.
// Photos that cannot be read are skipped and listed in the result.
func (m *MakeTrainData) Export(ctx context.Context, filename string) (*ExportResult, error) {
	q, err := m.cfg.RequireClassQuery()
	if err != nil {
		return nil, err
	}

	db, err := taxonomy.Open(m.dbPath)
	if err != nil {
		return nil, err
	}
	images, err := db.ImagesClasses(ctx, q)
	db.Close()
	if err != nil {
		return nil, err
	}

	if len(images) == 0 {
		m.logger.Info("No images found for the query", zap.Stringer("query", q))
		return &ExportResult{}, nil
	}
	m.logger.Info("Processing photos", zap.Int("count", len(images)))

	classes := make([]string, len(images))
	for i, im := range images {
		classes[i] = im.Class
	}
	codewords := newCodewords(classes)

	phenotyper, err := features.NewPhenotyper(m.cfg)
	if err != nil {
		return nil, err
	}
	inputHeader := phenotyper.Header()
	header := append([]string{constants.LabelColumn}, inputHeader...)
	for i := 1; i <= codewords.Len(); i++ {
		header = append(header, fmt.Sprintf("%s%d", m.cfg.DependentPrefix(), i))
	}

	phenotypes, failures, err := m.extract(ctx, phenotyper, images)
	if err != nil {
		return nil, err
	}

	data := traindata.New(len(inputHeader), codewords.Len())
	result := &ExportResult{Classes: codewords.Len(), Columns: len(inputHeader)}
	for i, im := range images {
		if failures[i] != nil {
			result.Failed = append(result.Failed, filepath.Join(m.basePath, im.Path))
			continue
		}
		cw, _ := codewords.Codeword(im.Class)
		if err := data.Append(phenotypes[i], cw, im.Path); err != nil {
			return nil, err
		}
	}
	if err := data.Finalize(); err != nil {
		return nil, err
	}
	data.RoundInput(constants.InputDecimals)

	if err := data.WriteFile(filename, header); err != nil {
		return nil, fmt.Errorf("failed to write training data: %w", err)
	}
	result.Photos = data.Len()
	m.logger.Info("Training data written", zap.String("file", filename), zap.Int("photos", result.Photos))

	if err := multierr.Combine(failures...); err != nil {
		m.logger.Warn("Some files could not be processed", zap.Strings("files", result.Failed), zap.Error(err))
	}
	return result, nil
}

// extract computes phenotypes in parallel. Results keep the order of
// images. Unreadable photos are reported in failures; a phenotype that does
// not match the header aborts the export.
func (m *MakeTrainData) extract(ctx context.Context, p *features.Phenotyper, images []taxonomy.PhotoClass) ([][]float64, []error, error) {
	phenotypes := make([][]float64, len(images))
	failures := make([]error, len(images))

	var bar *progressbar.ProgressBar
	if m.Progress != nil {
		bar = progressbar.NewOptions(len(images),
			progressbar.OptionSetWriter(m.Progress),
			progressbar.OptionSetDescription("Extracting features"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(m.Workers, 1))
	for i, im := range images {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(m.basePath, im.Path)
			m.logger.Debug("Processing photo", zap.String("path", im.Path), zap.String("class", im.Class))

			vec, err := p.Extract(path)
			if bar != nil {
				_ = bar.Add(1)
			}
			if errors.Is(err, features.ErrLengthMismatch) {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err != nil {
				m.logger.Warn("Failed to read photo, skipping", zap.String("path", path), zap.Error(err))
				failures[i] = fmt.Errorf("%s: %w", path, err)
				return nil
			}
			phenotypes[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return phenotypes, failures, nil
}
