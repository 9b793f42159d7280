package nucleus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ResolveModel picks the model file to load and returns it with its training
// step. An explicit file is used as given, relative to dir unless absolute.
// Otherwise dir is searched for "<name>-<step>.onnx" and the highest step wins.
// The step is empty when the file name does not carry one.
func ResolveModel(dir, file string) (path, step string, err error) {
	if file != "" {
		path = file
		if !filepath.IsAbs(file) && dir != "" {
			path = filepath.Join(dir, file)
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return "", "", fmt.Errorf("%w: %s", ErrModelNotFound, path)
			}
			return "", "", fmt.Errorf("checking model file: %w", err)
		}
		s, _ := modelStep(filepath.Base(path))
		return path, s, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", fmt.Errorf("%w: %s", ErrCheckpointNotFound, dir)
		}
		return "", "", fmt.Errorf("read checkpoint dir: %w", err)
	}

	best := -1
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		s, n := modelStep(entry.Name())
		if n < 0 || n <= best {
			continue
		}
		best = n
		path = filepath.Join(dir, entry.Name())
		step = s
	}
	if best < 0 {
		return "", "", fmt.Errorf("%w: %s", ErrCheckpointNotFound, dir)
	}
	return path, step, nil
}

// modelStep parses the step out of "<name>-<step>.onnx". n is -1 when the
// name has no numeric step.
func modelStep(name string) (step string, n int) {
	base, ok := strings.CutSuffix(name, ".onnx")
	if !ok {
		return "", -1
	}
	i := strings.LastIndexByte(base, '-')
	if i < 0 {
		return "", -1
	}
	step = base[i+1:]
	n, err := strconv.Atoi(step)
	if err != nil || n < 0 {
		return "", -1
	}
	return step, n
}
