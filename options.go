package nucleus

import (
	"log/slog"
	"runtime"

	"github.com/jamesainslie/go-nucleus/mask"
)

// Option configures a Scorer.
type Option func(*config)

type config struct {
	thresholds   []float64
	connectivity mask.Connectivity
	matcher      Matcher
	workers      int
	logger       *slog.Logger
}

func defaultConfig() config {
	return config{
		thresholds:   DefaultThresholds(),
		connectivity: mask.Connectivity8,
		matcher:      MatcherGreedy,
		workers:      runtime.NumCPU(),
		logger:       slog.Default(),
	}
}

// WithThresholds sets the IoU thresholds (default: 0.50 to 0.95 in steps of 0.05).
func WithThresholds(t []float64) Option {
	return func(c *config) {
		if len(t) > 0 {
			c.thresholds = append([]float64(nil), t...)
		}
	}
}

// WithConnectivity sets how pixels join into objects (default: mask.Connectivity8).
func WithConnectivity(conn mask.Connectivity) Option {
	return func(c *config) {
		if conn == mask.Connectivity4 || conn == mask.Connectivity8 {
			c.connectivity = conn
		}
	}
}

// WithMatcher sets the object assignment algorithm (default: MatcherGreedy).
func WithMatcher(m Matcher) Option {
	return func(c *config) {
		c.matcher = m
	}
}

// WithWorkers sets how many images ScoreDataset scores at once (default: runtime.NumCPU()).
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// PredictorOption configures a Predictor.
type PredictorOption func(*predictorConfig)

type predictorConfig struct {
	poolSize    int
	inputSize   int
	batchSize   int
	threshold   float32
	inputName   string
	outputName  string
	deviceID    int
	logits      bool
	libraryPath string
	logger      *slog.Logger
}

func defaultPredictorConfig() predictorConfig {
	return predictorConfig{
		poolSize:   1,
		inputSize:  256,
		batchSize:  24,
		threshold:  mask.DefaultThreshold,
		inputName:  "X",
		outputName: "pred",
		deviceID:   -1,
		logger:     slog.Default(),
	}
}

// WithPoolSize sets the ONNX session pool size (default: 1).
func WithPoolSize(n int) PredictorOption {
	return func(c *predictorConfig) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// WithInputSize sets the square model input edge in pixels (default: 256).
func WithInputSize(n int) PredictorOption {
	return func(c *predictorConfig) {
		if n > 0 {
			c.inputSize = n
		}
	}
}

// WithBatchSize sets how many images go through the model per run (default: 24).
func WithBatchSize(n int) PredictorOption {
	return func(c *predictorConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithProbabilityThreshold sets the foreground probability cutoff (default: 0.0001).
func WithProbabilityThreshold(t float32) PredictorOption {
	return func(c *predictorConfig) {
		c.threshold = t
	}
}

// WithIONames sets the model input and output tensor names (default: "X", "pred").
func WithIONames(input, output string) PredictorOption {
	return func(c *predictorConfig) {
		if input != "" {
			c.inputName = input
		}
		if output != "" {
			c.outputName = output
		}
	}
}

// WithGPU runs inference on the CUDA device with the given index.
func WithGPU(deviceID int) PredictorOption {
	return func(c *predictorConfig) {
		c.deviceID = deviceID
	}
}

// WithLogits declares that the model outputs logits rather than probabilities.
func WithLogits(logits bool) PredictorOption {
	return func(c *predictorConfig) {
		c.logits = logits
	}
}

// WithSharedLibraryPath sets the onnxruntime shared library location.
func WithSharedLibraryPath(path string) PredictorOption {
	return func(c *predictorConfig) {
		c.libraryPath = path
	}
}

// WithPredictorLogger sets the logger (default: slog.Default()).
func WithPredictorLogger(l *slog.Logger) PredictorOption {
	return func(c *predictorConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
