package config

import (
	"fmt"
	"os"
	"slices"

	"github.com/kozaktomas/orchid/internal/constants"
	"gopkg.in/yaml.v3"
)

// TrainerConfig holds the feature extraction, class query and network
// parameters read from a trainer YAML file.
type TrainerConfig struct {
	Preprocess *PreprocessConfig `yaml:"preprocess"`
	Features   *FeaturesConfig   `yaml:"features"`
	ClassQuery *ClassQuery       `yaml:"class_query"`
	Data       DataConfig        `yaml:"data"`
	ANN        *ANNConfig        `yaml:"ann"`
}

type PreprocessConfig struct {
	MaxDim       int                 `yaml:"maxdim"`
	Segmentation *SegmentationConfig `yaml:"segmentation"`
}

type SegmentationConfig struct {
	Iterations   int    `yaml:"iterations"`    // blur passes before thresholding
	Margin       int    `yaml:"margin"`        // pixels kept around the foreground bounding box
	OutputFolder string `yaml:"output_folder"` // optional folder for mask images, must exist
}

// FeaturesConfig selects the features of a phenotype. Features are always
// emitted in lexical order of their YAML names.
type FeaturesConfig struct {
	ColorBGRMeans   *BGRMeansConfig  `yaml:"color_bgr_means"`
	ColorHistograms map[string][]int `yaml:"color_histograms"`
	Shape360        *Shape360Config  `yaml:"shape_360"`
	ShapeOutline    *OutlineConfig   `yaml:"shape_outline"`
}

// Empty reports whether no feature is enabled.
func (f *FeaturesConfig) Empty() bool {
	return f == nil || (f.ColorBGRMeans == nil && len(f.ColorHistograms) == 0 && f.Shape360 == nil && f.ShapeOutline == nil)
}

type BGRMeansConfig struct {
	Bins int `yaml:"bins"`
}

type OutlineConfig struct {
	K int `yaml:"k"`
}

type Shape360Config struct {
	Step            int              `yaml:"step"`
	OutputFunctions *Shape360Outputs `yaml:"output_functions"`
}

type Shape360Outputs struct {
	MeanSD          *int             `yaml:"mean_sd"`
	ColorHistograms map[string][]int `yaml:"color_histograms"`
}

type DataConfig struct {
	DependentPrefix string `yaml:"dependent_prefix"`
}

// ANNConfig holds network training parameters. Values missing from the
// YAML keep their defaults.
type ANNConfig struct {
	ConnectionRate           float64 `yaml:"connection_rate"`
	HiddenLayers             int     `yaml:"hidden_layers"`
	HiddenNeurons            int     `yaml:"hidden_neurons"`
	LearningRate             float64 `yaml:"learning_rate"`
	Epochs                   int     `yaml:"epochs"`
	Error                    float64 `yaml:"error"`
	TrainingAlgorithm        string  `yaml:"training_algorithm"`
	ActivationFunctionHidden string  `yaml:"activation_function_hidden"`
	ActivationFunctionOutput string  `yaml:"activation_function_output"`
}

// DefaultANNConfig returns the network parameters used when a trainer
// configuration has no ann section.
func DefaultANNConfig() ANNConfig {
	return ANNConfig{
		ConnectionRate:           constants.DefaultConnectionRate,
		HiddenLayers:             constants.DefaultHiddenLayers,
		HiddenNeurons:            constants.DefaultHiddenNeurons,
		LearningRate:             constants.DefaultLearningRate,
		Epochs:                   constants.DefaultEpochs,
		Error:                    constants.DefaultDesiredError,
		TrainingAlgorithm:        constants.DefaultTrainAlgorithm,
		ActivationFunctionHidden: constants.DefaultActivationHidden,
		ActivationFunctionOutput: constants.DefaultActivationOutput,
	}
}

// UnmarshalYAML decodes on top of the defaults.
func (a *ANNConfig) UnmarshalYAML(value *yaml.Node) error {
	type plain ANNConfig
	p := plain(DefaultANNConfig())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*a = ANNConfig(p)
	return nil
}

// ClassQuery selects photos and their class from the taxonomy database.
// Class is the rank whose taxon names become the classes; Where restricts
// photos to those classified as the given taxon name at each rank.
type ClassQuery struct {
	Class string            `yaml:"class"`
	Where map[string]string `yaml:"where"`
}

var classQueryKeys = []string{"class", "where"}

// UnmarshalYAML rejects unknown keys and a missing class key.
func (q *ClassQuery) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: class_query must be a mapping", ErrConfiguration)
	}
	hasClass := false
	for i := 0; i < len(value.Content); i += 2 {
		key := value.Content[i].Value
		if !slices.Contains(classQueryKeys, key) {
			return fmt.Errorf("%w: unknown key '%s' in class_query", ErrConfiguration, key)
		}
		if key == "class" {
			hasClass = true
		}
	}
	if !hasClass {
		return fmt.Errorf("%w: class_query is missing the 'class' key", ErrConfiguration)
	}
	type plain ClassQuery
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*q = ClassQuery(p)
	return nil
}

// String renders the query for log messages.
func (q *ClassQuery) String() string {
	if q == nil {
		return "<nil>"
	}
	return fmt.Sprintf("class=%s where=%v", q.Class, q.Where)
}

// DependentPrefix returns the prefix of the output columns in training data.
func (c *TrainerConfig) DependentPrefix() string {
	if c.Data.DependentPrefix == "" {
		return constants.DefaultDependentPrefix
	}
	return c.Data.DependentPrefix
}

// Network returns the ann section, or the defaults when it is absent.
func (c *TrainerConfig) Network() ANNConfig {
	if c.ANN == nil {
		return DefaultANNConfig()
	}
	return *c.ANN
}

// RequireClassQuery returns the class query or a configuration error.
func (c *TrainerConfig) RequireClassQuery() (*ClassQuery, error) {
	if c.ClassQuery == nil {
		return nil, fmt.Errorf("%w: classification query not set, option 'class_query' is missing", ErrConfiguration)
	}
	return c.ClassQuery, nil
}

// Validate checks values that can only be verified against the environment.
func (c *TrainerConfig) Validate() error {
	if c.Preprocess == nil || c.Preprocess.Segmentation == nil {
		return nil
	}
	path := c.Preprocess.Segmentation.OutputFolder
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: cannot open %s (no such directory)", ErrConfiguration, path)
	}
	return nil
}

// ParseTrainer decodes and validates a trainer configuration.
func ParseTrainer(data []byte) (*TrainerConfig, error) {
	var cfg TrainerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing trainer configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadTrainer reads a trainer configuration file.
func LoadTrainer(path string) (*TrainerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trainer configuration: %w", err)
	}
	return ParseTrainer(data)
}
