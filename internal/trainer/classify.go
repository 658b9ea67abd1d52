package trainer

import (
	"context"
	"fmt"
	"image"

	"github.com/kozaktomas/orchid/internal/ann"
	"github.com/kozaktomas/orchid/internal/codeword"
	"github.com/kozaktomas/orchid/internal/config"
	"github.com/kozaktomas/orchid/internal/features"
)

// ImageClassifier classifies photos with a trained network.
type ImageClassifier struct {
	rank       string
	net        *ann.Network
	codewords  *codeword.Set
	phenotyper *features.Phenotyper
}

// Identification is the classification of one photo.
type Identification struct {
	Rank      string            // rank of the classes, e.g. species
	Classes   []codeword.Ranked // best first
	Phenotype []float64
}

// NewImageClassifier loads the network and the classes selected by the
// class query of cfg.
func NewImageClassifier(ctx context.Context, cfg *config.TrainerConfig, annFile, dbPath string) (*ImageClassifier, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	if err := requireFile(annFile); err != nil {
		return nil, err
	}
	q, err := cfg.RequireClassQuery()
	if err != nil {
		return nil, err
	}

	net, err := ann.Load(annFile)
	if err != nil {
		return nil, err
	}
	classes, err := queryClasses(ctx, cfg, dbPath)
	if err != nil {
		return nil, err
	}
	phenotyper, err := features.NewPhenotyper(cfg)
	if err != nil {
		return nil, err
	}

	if net.NumOutput() != len(classes) {
		return nil, fmt.Errorf("%w: network has %d outputs, query selects %d classes",
			codeword.ErrLengthMismatch, net.NumOutput(), len(classes))
	}
	if net.NumInput() != len(phenotyper.Header()) {
		return nil, fmt.Errorf("%w: network has %d inputs, features produce %d values",
			ann.ErrWidthMismatch, net.NumInput(), len(phenotyper.Header()))
	}

	return &ImageClassifier{
		rank:       q.Class,
		net:        net,
		codewords:  newCodewords(classes),
		phenotyper: phenotyper,
	}, nil
}

// Classes returns the classes the network distinguishes.
func (c *ImageClassifier) Classes() []string {
	return c.codewords.Classes()
}

// Classify returns the classes of an image file, best first.
func (c *ImageClassifier) Classify(imagePath string, maxError float64) ([]codeword.Ranked, error) {
	img, err := features.Load(imagePath)
	if err != nil {
		return nil, err
	}
	id, err := c.ClassifyImage(img, imagePath, maxError)
	if err != nil {
		return nil, err
	}
	return id.Classes, nil
}

// ClassifyImage classifies a decoded image.
func (c *ImageClassifier) ClassifyImage(img image.Image, name string, maxError float64) (*Identification, error) {
	phenotype, err := c.phenotyper.Make(img, name)
	if err != nil {
		return nil, err
	}
	out, err := c.net.Run(phenotype)
	if err != nil {
		return nil, err
	}
	ranked, err := c.codewords.Classify(out, maxError)
	if err != nil {
		return nil, err
	}
	return &Identification{Rank: c.rank, Classes: ranked, Phenotype: phenotype}, nil
}
