// Package dataset reads images and ground-truth masks in the stage-1 layout:
//
//	<root>/<id>/images/<id>.png
//	<root>/<id>/masks/*.png
//
// Each mask file holds one nucleus. Masks are optional; test sets ship without them.
package dataset

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"

	"github.com/jamesainslie/go-nucleus/mask"
)

// ErrNoMasks is returned by Truth for a sample without mask files.
var ErrNoMasks = errors.New("dataset: sample has no masks")

// Sample is one image directory.
type Sample struct {
	ID        string
	ImagePath string
	MaskPaths []string // sorted
	Height    int
	Width     int
}

// HasMasks reports whether the sample carries ground truth.
func (s Sample) HasMasks() bool { return len(s.MaskPaths) > 0 }

// Image decodes the sample image.
func (s Sample) Image() (image.Image, error) {
	img, err := imaging.Open(s.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", s.ID, err)
	}
	return img, nil
}

// Truth unions every per-nucleus mask into one binary mask. Touching nuclei
// merge into a single object once the result is labeled.
func (s Sample) Truth() (*mask.Mask, error) {
	if !s.HasMasks() {
		return nil, fmt.Errorf("%w: %s", ErrNoMasks, s.ID)
	}
	truth := mask.New(s.Height, s.Width)
	for _, path := range s.MaskPaths {
		img, err := imaging.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open mask %s: %w", path, err)
		}
		m := mask.FromImage(img, 0)
		truth, err = truth.Union(m)
		if err != nil {
			return nil, fmt.Errorf("mask %s: %w", filepath.Base(path), err)
		}
	}
	return truth, nil
}

// Load reads one sample directory. The image size comes from the PNG header.
func Load(dir string) (Sample, error) {
	id := filepath.Base(dir)
	s := Sample{
		ID:        id,
		ImagePath: filepath.Join(dir, "images", id+".png"),
	}

	h, w, err := imageSize(s.ImagePath)
	if err != nil {
		return Sample{}, err
	}
	s.Height, s.Width = h, w

	masks, err := filepath.Glob(filepath.Join(dir, "masks", "*.png"))
	if err != nil {
		return Sample{}, fmt.Errorf("glob masks: %w", err)
	}
	sort.Strings(masks)
	s.MaskPaths = masks

	return s, nil
}

// LoadDir loads every sample directory under root, sorted by id.
func LoadDir(root string) ([]Sample, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var samples []Sample
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		s, err := Load(filepath.Join(root, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", entry.Name(), err)
		}
		samples = append(samples, s)
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].ID < samples[j].ID })
	return samples, nil
}

func imageSize(path string) (height, width int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image header %s: %w", path, err)
	}
	return cfg.Height, cfg.Width, nil
}
