// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Training data constants
const (
	// DefaultDependentPrefix marks the output (codeword) columns of a training data file
	DefaultDependentPrefix = "OUT:"

	// LabelColumn is the name of the sample label column
	LabelColumn = "ID"

	// InputDecimals is the number of decimals input values are rounded to on export
	InputDecimals = 6
)

// Classification constants
const (
	// DefaultMaxError is the default maximum squared error for a network output
	// to count as a positive classification
	DefaultMaxError = 0.00001

	// CodewordNegative and CodewordPositive are the values used in class codewords
	CodewordNegative = -1.0
	CodewordPositive = 1.0
)

// Network training defaults, used when the trainer configuration omits a value
const (
	DefaultConnectionRate   = 1.0
	DefaultHiddenLayers     = 1
	DefaultHiddenNeurons    = 8
	DefaultLearningRate     = 0.7
	DefaultEpochs           = 100000
	DefaultDesiredError     = 0.00001
	DefaultTrainAlgorithm   = "TRAIN_RPROP"
	DefaultActivationHidden = "SIGMOID_STEPWISE"
	DefaultActivationOutput = "SIGMOID_STEPWISE"

	// ReportsPerTraining is the number of progress reports during a training run
	ReportsPerTraining = 100
)

// Feature extraction defaults
const (
	// DefaultBGRMeansBins is the default number of slices for color_bgr_means
	DefaultBGRMeansBins = 20

	// DefaultOutlineK is the default number of sample lines for shape_outline
	DefaultOutlineK = 15

	// DefaultShape360Step is the default angle step in degrees for shape_360
	DefaultShape360Step = 1
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel workers for feature extraction
	WorkerPoolSize = 4

	// ThumbnailSize is the maximum dimension of generated thumbnails
	ThumbnailSize = 300

	// DuplicateHashDistance is the max dHash Hamming distance for an upload to count as a duplicate
	DuplicateHashDistance = 4
)

// Web constants
const (
	// DefaultSimilarLimit is the default number of similar photos to return
	DefaultSimilarLimit = 10

	// MaxSimilarLimit caps the limit query parameter of similar photo searches
	MaxSimilarLimit = 100

	// DefaultPageSize and MaxPageSize bound list endpoints
	DefaultPageSize = 50
	MaxPageSize     = 500

	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100

	// MaxUploadSize is the maximum file upload size in bytes (100MB)
	MaxUploadSize = 100 << 20
)
