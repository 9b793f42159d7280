// Package mask provides binary masks, connected-component labeling and the
// run-length encoding used by nucleus submissions.
package mask

import (
	"fmt"
	"image"
	"image/color"
)

// Mask is a binary foreground/background grid stored row-major.
// A Mask should not be modified after it has been handed to a scorer.
type Mask struct {
	Height int
	Width  int
	Pix    []bool
}

// New returns an all-background mask of the given size.
func New(height, width int) *Mask {
	if height < 0 {
		height = 0
	}
	if width < 0 {
		width = 0
	}
	return &Mask{
		Height: height,
		Width:  width,
		Pix:    make([]bool, height*width),
	}
}

// FromRows builds a mask from rows of 0/1 values. All rows must have the same length.
func FromRows(rows [][]uint8) (*Mask, error) {
	if len(rows) == 0 {
		return New(0, 0), nil
	}
	w := len(rows[0])
	m := New(len(rows), w)
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("row %d has %d columns, want %d", y, len(row), w)
		}
		for x, v := range row {
			m.Pix[y*w+x] = v != 0
		}
	}
	return m, nil
}

// FromImage converts an image into a mask. A pixel is foreground when its
// gray level is strictly greater than level.
func FromImage(img image.Image, level uint8) *Mask {
	b := img.Bounds()
	m := New(b.Dy(), b.Dx())
	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < m.Height; y++ {
			off := g.PixOffset(b.Min.X, b.Min.Y+y)
			row := g.Pix[off : off+m.Width]
			for x, v := range row {
				m.Pix[y*m.Width+x] = v > level
			}
		}
		return m
	}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			m.Pix[y*m.Width+x] = c.Y > level
		}
	}
	return m
}

// Gray renders the mask as an 8-bit image with foreground at 255.
func (m *Mask) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v {
			g.Pix[i] = 255
		}
	}
	return g
}

// At reports whether the pixel at (x, y) is foreground.
func (m *Mask) At(x, y int) bool {
	return m.Pix[y*m.Width+x]
}

// Set marks the pixel at (x, y) as foreground or background.
func (m *Mask) Set(x, y int, v bool) {
	m.Pix[y*m.Width+x] = v
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// SameShape reports whether both masks have identical dimensions.
func (m *Mask) SameShape(other *Mask) bool {
	return m.Height == other.Height && m.Width == other.Width
}

// Equal reports whether both masks have the same shape and pixels.
func (m *Mask) Equal(other *Mask) bool {
	if !m.SameShape(other) {
		return false
	}
	for i, v := range m.Pix {
		if other.Pix[i] != v {
			return false
		}
	}
	return true
}

// Union returns a new mask that is foreground wherever either input is.
func (m *Mask) Union(other *Mask) (*Mask, error) {
	if !m.SameShape(other) {
		return nil, fmt.Errorf("union of %dx%d and %dx%d masks", m.Height, m.Width, other.Height, other.Width)
	}
	out := New(m.Height, m.Width)
	for i := range out.Pix {
		out.Pix[i] = m.Pix[i] || other.Pix[i]
	}
	return out, nil
}

// String returns the mask dimensions.
func (m *Mask) String() string {
	return fmt.Sprintf("%dx%d mask", m.Height, m.Width)
}
