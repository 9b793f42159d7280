package nucleus

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/go-nucleus/inference"
	"github.com/jamesainslie/go-nucleus/internal/dataset"
	"github.com/jamesainslie/go-nucleus/mask"
)

// Prediction is the segmentation of one image.
type Prediction struct {
	ID     string
	Height int
	Width  int

	// Mask is the binary prediction at the original image size.
	Mask *mask.Mask

	// Proba is the foreground probability map at model input size.
	Proba *image.Gray
}

// Input is one image to segment.
type Input struct {
	ID    string
	Image image.Image
}

// source defers decoding so a batch only holds its own images in memory.
type source struct {
	id   string
	open func() (image.Image, error)
}

// Predictor segments nuclei with a U-Net style ONNX model.
// It is safe for concurrent use.
type Predictor struct {
	pool      *inference.Pool
	inputSize int
	batchSize int
	threshold float32
	logits    bool
	logger    *slog.Logger
}

// NewPredictor loads the model into a pool of inference sessions.
func NewPredictor(modelPath string, opts ...PredictorOption) (*Predictor, error) {
	cfg := defaultPredictorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, err := os.Stat(modelPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelPath)
		}
		return nil, fmt.Errorf("checking model file: %w", err)
	}

	pool, err := inference.NewPool(modelPath, cfg.poolSize, inference.Config{
		InputName:   cfg.inputName,
		OutputName:  cfg.outputName,
		DeviceID:    cfg.deviceID,
		LibraryPath: cfg.libraryPath,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}

	cfg.logger.Debug("loaded model",
		"path", pool.ModelPath(),
		"pool_size", pool.Size(),
		"input_size", cfg.inputSize,
		"device", cfg.deviceID)

	return &Predictor{
		pool:      pool,
		inputSize: cfg.inputSize,
		batchSize: cfg.batchSize,
		threshold: cfg.threshold,
		logits:    cfg.logits,
		logger:    cfg.logger,
	}, nil
}

// Predict segments the given images. Results keep the input order.
func (p *Predictor) Predict(ctx context.Context, inputs []Input) ([]Prediction, error) {
	sources := make([]source, len(inputs))
	for i, in := range inputs {
		sources[i] = source{id: in.ID, open: func() (image.Image, error) { return in.Image, nil }}
	}
	return p.run(ctx, sources)
}

// PredictDir segments every image in a stage-1 layout directory, sorted by id.
func (p *Predictor) PredictDir(ctx context.Context, dir string) ([]Prediction, error) {
	samples, err := dataset.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	sources := make([]source, len(samples))
	for i, s := range samples {
		sources[i] = source{id: s.ID, open: s.Image}
	}
	return p.run(ctx, sources)
}

func (p *Predictor) run(ctx context.Context, sources []source) ([]Prediction, error) {
	start := time.Now()
	out := make([]Prediction, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.pool.Size())
	for lo := 0; lo < len(sources); lo += p.batchSize {
		if gctx.Err() != nil {
			break
		}
		hi := min(lo+p.batchSize, len(sources))
		g.Go(func() error {
			preds, err := p.predictBatch(gctx, sources[lo:hi])
			if err != nil {
				return err
			}
			copy(out[lo:hi], preds)
			p.logger.Debug("predicted batch", "from", lo, "to", hi, "total", len(sources))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger.Info("prediction finished", "model", p.pool.ModelPath(), "images", len(out), "elapsed", time.Since(start).String())
	return out, nil
}

func (p *Predictor) predictBatch(ctx context.Context, batch []source) ([]Prediction, error) {
	size := p.inputSize
	plane := size * size

	preds := make([]Prediction, len(batch))
	input := make([]float32, len(batch)*plane*3)
	for i, src := range batch {
		img, err := src.open()
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", src.id, err)
		}
		b := img.Bounds()
		preds[i] = Prediction{ID: src.id, Height: b.Dy(), Width: b.Dx()}
		fillTensor(input[i*plane*3:(i+1)*plane*3], img, size)
	}

	shape := []int64{int64(len(batch)), int64(size), int64(size), 3}
	output, outShape, err := p.pool.Infer(ctx, input, shape)
	if err != nil {
		return nil, fmt.Errorf("predicting %s: %w", batch[0].id, err)
	}

	if err := p.decodeOutput(output, outShape, preds); err != nil {
		return nil, err
	}
	return preds, nil
}

// decodeOutput fills the probability map and binary mask of every prediction
// from a batched NHWC model output. Channel 0 holds the foreground; Height and
// Width of each prediction must already be set.
func (p *Predictor) decodeOutput(output []float32, outShape []int64, preds []Prediction) error {
	size := p.inputSize
	plane := size * size

	per := 0
	if len(preds) > 0 {
		per = len(output) / len(preds)
	}
	if per == 0 || len(output)%len(preds) != 0 || per%plane != 0 {
		return fmt.Errorf("%w: output shape %v for %d images of %dx%d",
			ErrInvalidModel, outShape, len(preds), size, size)
	}
	channels := per / plane

	for i := range preds {
		prob := make([]float32, plane)
		base := i * per
		for k := range prob {
			prob[k] = output[base+k*channels]
		}
		if p.logits {
			mask.Sigmoid(prob)
		}

		preds[i].Proba = mask.ProbabilityImage(prob, size, size)
		binary, err := mask.Binarize(prob, size, size, p.threshold)
		if err != nil {
			return fmt.Errorf("binarizing %s: %w", preds[i].ID, err)
		}
		preds[i].Mask = mask.Resize(binary, preds[i].Height, preds[i].Width, p.threshold)
	}
	return nil
}

// fillTensor writes img resized to size x size as NHWC RGB values in [0, 1].
func fillTensor(dst []float32, img image.Image, size int) {
	resized := imaging.Resize(img, size, size, imaging.Linear)
	for y := 0; y < size; y++ {
		row := resized.Pix[y*resized.Stride : y*resized.Stride+size*4]
		for x := 0; x < size; x++ {
			k := (y*size + x) * 3
			dst[k] = float32(row[x*4]) / 255
			dst[k+1] = float32(row[x*4+1]) / 255
			dst[k+2] = float32(row[x*4+2]) / 255
		}
	}
}

// InputSize returns the square model input edge in pixels.
func (p *Predictor) InputSize() int { return p.inputSize }

// Close releases all resources.
func (p *Predictor) Close() error {
	var errs []error

	if p.pool != nil {
		if err := p.pool.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
