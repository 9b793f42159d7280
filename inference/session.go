// Package inference provides ONNX Runtime integration for segmentation model inference.
package inference

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortEnvOnce sync.Once
	ortEnvErr  error
)

// initORT initializes ONNX Runtime environment once. The shared library path
// only takes effect on the first call.
func initORT(libraryPath string) error {
	ortEnvOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortEnvErr = ort.InitializeEnvironment()
	})
	return ortEnvErr
}

// Config selects the model tensors and execution device.
type Config struct {
	// InputName and OutputName are the graph's image input and mask output.
	InputName  string
	OutputName string

	// DeviceID is the CUDA device to run on; negative runs on the CPU.
	DeviceID int

	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// platform default search.
	LibraryPath string
}

// DefaultConfig returns the tensor names the segmentation model is exported with.
func DefaultConfig() Config {
	return Config{
		InputName:  "X",
		OutputName: "pred",
		DeviceID:   -1,
	}
}

// Session wraps an ONNX Runtime session for image segmentation.
type Session struct {
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex
	closed  bool
}

// NewSession creates a new ONNX session from a model file.
func NewSession(modelPath string, cfg Config) (*Session, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if err := initORT(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("initializing ONNX runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating session options: %w", err)
	}
	defer func() { _ = options.Destroy() }()

	if cfg.DeviceID >= 0 {
		if err := appendCUDA(options, cfg.DeviceID); err != nil {
			return nil, err
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &Session{session: session}, nil
}

func appendCUDA(options *ort.SessionOptions, deviceID int) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("creating CUDA options: %w", err)
	}
	defer func() { _ = cuda.Destroy() }()

	if err := cuda.Update(map[string]string{
		"device_id": strconv.Itoa(deviceID),
	}); err != nil {
		return fmt.Errorf("configuring CUDA device %d: %w", deviceID, err)
	}
	if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
		return fmt.Errorf("enabling CUDA device %d: %w", deviceID, err)
	}
	return nil
}

// Infer runs the model on one input tensor and returns a copy of the output
// tensor together with its shape.
func (s *Session) Infer(ctx context.Context, input []float32, shape []int64) ([]float32, []int64, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}

	if n := elements(shape); n != int64(len(input)) {
		return nil, nil, fmt.Errorf("%w: shape %v holds %d values, got %d", ErrInputShape, shape, n, len(input))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, ErrSessionClosed
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(shape...), input)
	if err != nil {
		return nil, nil, fmt.Errorf("creating input tensor: %w", err)
	}
	defer func() { _ = inputTensor.Destroy() }()

	// nil entries are allocated by Run
	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, nil, fmt.Errorf("running inference: %w", err)
	}
	if outputs[0] == nil {
		return nil, nil, fmt.Errorf("no output produced")
	}
	defer func() { _ = outputs[0].Destroy() }()

	outputTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("unexpected output tensor type")
	}

	data := outputTensor.GetData()
	out := make([]float32, len(data))
	copy(out, data)

	outShape := outputTensor.GetShape()
	return out, append([]int64(nil), outShape...), nil
}

func elements(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		if d <= 0 {
			return 0
		}
		n *= d
	}
	return n
}

// Close releases ONNX resources.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}
