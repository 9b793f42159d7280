package mask

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
)

// DefaultThreshold is the probability above which a pixel counts as foreground.
const DefaultThreshold float32 = 0.0001

// Binarize thresholds a row-major probability map: values strictly greater
// than t become foreground.
func Binarize(prob []float32, height, width int, t float32) (*Mask, error) {
	if len(prob) != height*width {
		return nil, fmt.Errorf("probability map has %d values, want %dx%d", len(prob), height, width)
	}
	m := New(height, width)
	for i, p := range prob {
		m.Pix[i] = p > t
	}
	return m, nil
}

// Sigmoid converts logits to probabilities in place.
func Sigmoid(logits []float32) {
	for i, x := range logits {
		logits[i] = 1 / (1 + math32.Exp(-x))
	}
}

// ProbabilityImage renders a probability map as an 8-bit gray image.
func ProbabilityImage(prob []float32, height, width int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, width, height))
	for i, p := range prob {
		if i >= len(g.Pix) {
			break
		}
		switch {
		case p <= 0:
			g.Pix[i] = 0
		case p >= 1:
			g.Pix[i] = 255
		default:
			g.Pix[i] = uint8(p*255 + 0.5)
		}
	}
	return g
}

// Resize scales m to height x width with bilinear interpolation and
// re-binarizes the result: any interpolated value above t stays foreground.
func Resize(m *Mask, height, width int, t float32) *Mask {
	if m.Height == height && m.Width == width {
		out := New(height, width)
		copy(out.Pix, m.Pix)
		return out
	}
	if m.Height == 0 || m.Width == 0 || height <= 0 || width <= 0 {
		return New(height, width)
	}

	scaled := resize.Resize(uint(width), uint(height), m.Gray(), resize.Bilinear)
	level := t * 255
	if level < 0 {
		level = 0
	}
	if level > 255 {
		level = 255
	}
	return FromImage(scaled, uint8(level))
}
