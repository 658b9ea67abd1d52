package features

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/kozaktomas/orchid/internal/config"
)

// ErrLengthMismatch is returned when a phenotype and its header differ in
// length.
var ErrLengthMismatch = errors.New("phenotype length does not match the header")

// Extractor produces the phenotype of an image file.
type Extractor interface {
	Header() []string
	Extract(path string) ([]float64, error)
}

// Phenotyper extracts the features selected by a trainer configuration.
// Features are emitted in lexical order of their names: color_bgr_means,
// color_histograms, shape_360, shape_outline.
type Phenotyper struct {
	preprocess *config.PreprocessConfig
	features   *config.FeaturesConfig
	header     []string
}

// NewPhenotyper validates the feature configuration and builds its header.
func NewPhenotyper(cfg *config.TrainerConfig) (*Phenotyper, error) {
	if cfg.Features.Empty() {
		return nil, fmt.Errorf("%w: features not set in configuration", config.ErrConfiguration)
	}
	f := cfg.Features
	if err := checkHistograms(f.ColorHistograms); err != nil {
		return nil, fmt.Errorf("%w: color_histograms: %v", config.ErrConfiguration, err)
	}
	if f.Shape360 != nil && f.Shape360.OutputFunctions != nil {
		if err := checkHistograms(f.Shape360.OutputFunctions.ColorHistograms); err != nil {
			return nil, fmt.Errorf("%w: shape_360: %v", config.ErrConfiguration, err)
		}
	}

	return &Phenotyper{
		preprocess: cfg.Preprocess,
		features:   f,
		header:     Header(f),
	}, nil
}

// Header returns the names of the phenotype columns.
func Header(f *config.FeaturesConfig) []string {
	var header []string
	if f.ColorBGRMeans != nil {
		header = bgrMeansColumns(header, bgrMeansBins(f.ColorBGRMeans.Bins))
	}
	if len(f.ColorHistograms) > 0 {
		header = histogramColumns(header, "", f.ColorHistograms)
	}
	if f.Shape360 != nil {
		header = newShape360(f.Shape360).columns(header)
	}
	if f.ShapeOutline != nil {
		header = outlineColumns(header, outlineK(f.ShapeOutline.K))
	}
	return header
}

func (p *Phenotyper) Header() []string {
	return append([]string(nil), p.header...)
}

// Extract loads an image file and returns its phenotype.
func (p *Phenotyper) Extract(path string) ([]float64, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	return p.Make(img, path)
}

// Make returns the phenotype of img. When segmentation masks are kept,
// the mask is written as a PNG named after name.
func (p *Phenotyper) Make(img image.Image, name string) ([]float64, error) {
	s := prepare(img, p.preprocess)
	if err := p.saveMask(s, name); err != nil {
		return nil, err
	}

	f := p.features
	var vec []float64
	if f.ColorBGRMeans != nil {
		vec = append(vec, bgrMeans(s, bgrMeansBins(f.ColorBGRMeans.Bins))...)
	}
	if len(f.ColorHistograms) > 0 {
		vec = append(vec, colorHistograms(s, f.ColorHistograms)...)
	}
	if f.Shape360 != nil {
		vec = append(vec, newShape360(f.Shape360).extract(s)...)
	}
	if f.ShapeOutline != nil {
		vec = append(vec, outline(s, outlineK(f.ShapeOutline.K))...)
	}

	if len(vec) != len(p.header) {
		return nil, fmt.Errorf("%w: %d values, %d columns", ErrLengthMismatch, len(vec), len(p.header))
	}
	return vec, nil
}

func (p *Phenotyper) saveMask(s *sample, name string) error {
	if p.preprocess == nil || p.preprocess.Segmentation == nil || p.preprocess.Segmentation.OutputFolder == "" {
		return nil
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	path := filepath.Join(p.preprocess.Segmentation.OutputFolder, base+".png")
	if err := imaging.Save(s.maskImage(), path); err != nil {
		return fmt.Errorf("saving segmentation mask: %w", err)
	}
	return nil
}
