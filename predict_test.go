package nucleus

import (
	"context"
	"image"
	"image/color"
	"os"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = "testdata/unet.onnx"

func openPredictor(t *testing.T, opts ...PredictorOption) *Predictor {
	t.Helper()
	if _, err := os.Stat(testModel); err != nil {
		t.Skipf("Skipping: model not available at %s", testModel)
	}
	p, err := NewPredictor(testModel, opts...)
	if err != nil {
		if strings.Contains(err.Error(), "ONNX runtime") || strings.Contains(err.Error(), "shared library") {
			t.Skipf("Skipping: ONNX runtime not available: %v", err)
		}
		t.Fatalf("NewPredictor failed: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNewPredictor_ModelNotFound(t *testing.T) {
	_, err := NewPredictor("testdata/nonexistent.onnx")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestFillTensor(t *testing.T) {
	img := imaging.New(4, 2, color.NRGBA{R: 255, G: 51, B: 0, A: 255})

	dst := make([]float32, 2*2*3)
	fillTensor(dst, img, 2)

	for k := 0; k < len(dst); k += 3 {
		assert.InDelta(t, 1.0, dst[k], 1e-6)
		assert.InDelta(t, 0.2, dst[k+1], 1e-6)
		assert.InDelta(t, 0.0, dst[k+2], 1e-6)
	}
}

func TestPredictorOptions(t *testing.T) {
	cfg := defaultPredictorConfig()
	for _, opt := range []PredictorOption{
		WithPoolSize(0),
		WithInputSize(128),
		WithBatchSize(-1),
		WithProbabilityThreshold(0.5),
		WithIONames("input", ""),
		WithGPU(1),
		WithLogits(true),
		WithSharedLibraryPath("/opt/ort/libonnxruntime.so"),
		WithPredictorLogger(nil),
	} {
		opt(&cfg)
	}

	assert.Equal(t, 1, cfg.poolSize)
	assert.Equal(t, 128, cfg.inputSize)
	assert.Equal(t, 24, cfg.batchSize)
	assert.Equal(t, float32(0.5), cfg.threshold)
	assert.Equal(t, "input", cfg.inputName)
	assert.Equal(t, "pred", cfg.outputName)
	assert.Equal(t, 1, cfg.deviceID)
	assert.True(t, cfg.logits)
	assert.Equal(t, "/opt/ort/libonnxruntime.so", cfg.libraryPath)
	assert.NotNil(t, cfg.logger)
}

func TestPredictor_Predict(t *testing.T) {
	p := openPredictor(t, WithBatchSize(2), WithPoolSize(2))

	inputs := []Input{
		{ID: "wide", Image: imaging.New(320, 200, color.NRGBA{A: 255})},
		{ID: "square", Image: imaging.New(256, 256, color.NRGBA{R: 200, G: 200, B: 200, A: 255})},
		{ID: "small", Image: image.NewGray(image.Rect(0, 0, 64, 48))},
	}
	preds, err := p.Predict(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, preds, len(inputs))

	for i, pr := range preds {
		b := inputs[i].Image.Bounds()
		assert.Equal(t, inputs[i].ID, pr.ID)
		assert.Equal(t, b.Dy(), pr.Mask.Height)
		assert.Equal(t, b.Dx(), pr.Mask.Width)
		assert.Equal(t, p.InputSize(), pr.Proba.Bounds().Dx())
	}
}

func TestPredictor_Cancelled(t *testing.T) {
	p := openPredictor(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Predict(ctx, []Input{{ID: "x", Image: imaging.New(8, 8, color.NRGBA{A: 255})}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeOutput(t *testing.T) {
	// Two 2x2 images, two channels each; channel 1 is noise the decoder must skip.
	interleave := func(fg []float32) []float32 {
		out := make([]float32, 0, len(fg)*2)
		for _, v := range fg {
			out = append(out, v, 1)
		}
		return out
	}
	diagonal := [][]uint8{{1, 0}, {0, 1}}

	tests := []struct {
		name   string
		logits bool
		output []float32
		want   [][][]uint8
	}{
		{
			name:   "probabilities",
			output: append(interleave([]float32{0.9, 0.1, 0.2, 0.8}), interleave([]float32{0, 0, 0, 0})...),
			want:   [][][]uint8{diagonal, {{0, 0}, {0, 0}}},
		},
		{
			name:   "logits",
			logits: true,
			output: append(interleave([]float32{2, -2, -2, 2}), interleave([]float32{3, 3, 3, 3})...),
			want:   [][][]uint8{diagonal, {{1, 1}, {1, 1}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Predictor{inputSize: 2, threshold: 0.5, logits: tt.logits}
			preds := []Prediction{
				{ID: "a", Height: 2, Width: 2},
				{ID: "b", Height: 2, Width: 2},
			}
			require.NoError(t, p.decodeOutput(tt.output, []int64{2, 2, 2, 2}, preds))

			for i, pr := range preds {
				assert.True(t, pr.Mask.Equal(rows(t, tt.want[i])), "%s mask:\n%s", pr.ID, pr.Mask)
				assert.Equal(t, 2, pr.Proba.Bounds().Dx())
			}
		})
	}
}

func TestDecodeOutput_SigmoidProbability(t *testing.T) {
	p := &Predictor{inputSize: 1, threshold: 0.5, logits: true}
	preds := []Prediction{{ID: "a", Height: 1, Width: 1}}
	require.NoError(t, p.decodeOutput([]float32{0}, []int64{1, 1, 1, 1}, preds))
	assert.Equal(t, uint8(128), preds[0].Proba.Pix[0])
	assert.False(t, preds[0].Mask.Pix[0])
}

func TestDecodeOutput_ResizesToOriginal(t *testing.T) {
	p := &Predictor{inputSize: 2, threshold: 0.5}
	preds := []Prediction{{ID: "a", Height: 5, Width: 3}}
	require.NoError(t, p.decodeOutput([]float32{1, 1, 1, 1}, []int64{1, 2, 2, 1}, preds))

	assert.Equal(t, 5, preds[0].Mask.Height)
	assert.Equal(t, 3, preds[0].Mask.Width)
	assert.Equal(t, 15, preds[0].Mask.Count())
	assert.Equal(t, 2, preds[0].Proba.Bounds().Dy())
}

func TestDecodeOutput_BadShape(t *testing.T) {
	p := &Predictor{inputSize: 2, threshold: 0.5}

	err := p.decodeOutput(make([]float32, 5), []int64{5}, make([]Prediction, 2))
	assert.ErrorIs(t, err, ErrInvalidModel)

	err = p.decodeOutput(make([]float32, 6), []int64{2, 3}, make([]Prediction, 2))
	assert.ErrorIs(t, err, ErrInvalidModel)

	err = p.decodeOutput(nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidModel)
}
