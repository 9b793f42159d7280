package mask

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// ErrInvalidRLE indicates a run-length encoding that cannot be decoded.
var ErrInvalidRLE = errors.New("mask: invalid run-length encoding")

// RLE is a flat list of (start, length) pairs. Starts are 1-based pixel
// indices in column-major order: the pixel at (x, y) has index x*height+y+1.
type RLE []int

// String joins the values with single spaces, the submission format.
func (r RLE) String() string {
	parts := make([]string, len(r))
	for i, v := range r {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

// Pixels returns the number of pixels covered by the runs.
func (r RLE) Pixels() int {
	n := 0
	for i := 1; i < len(r); i += 2 {
		n += r[i]
	}
	return n
}

// ParseRLE parses a space separated list of run values.
func ParseRLE(s string) (RLE, error) {
	fields := strings.Fields(s)
	if len(fields)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of values (%d)", ErrInvalidRLE, len(fields))
	}
	r := make(RLE, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%w: value %q: %w", ErrInvalidRLE, f, err)
		}
		r[i] = v
	}
	return r, nil
}

// MinObjectSize returns the smallest object area kept in a submission for an
// image of the given size: 20 pixels at 256x256, scaled by area.
func MinObjectSize(height, width int) float64 {
	return 20 * float64(height) * float64(width) / (256 * 256)
}

// EncodeRLE encodes every foreground pixel of m as a single run list.
func EncodeRLE(m *Mask) RLE {
	var r RLE
	prev := -2
	for x := 0; x < m.Width; x++ {
		for y := 0; y < m.Height; y++ {
			if !m.Pix[y*m.Width+x] {
				continue
			}
			pos := x*m.Height + y
			if pos > prev+1 {
				r = append(r, pos+1, 0)
			}
			r[len(r)-1]++
			prev = pos
		}
	}
	return r
}

// EncodeObjects labels m and yields one encoding per object, in label order.
// Objects with fewer than minObjectSize pixels are skipped. Nothing is computed
// until the sequence is iterated.
func EncodeObjects(m *Mask, minObjectSize float64, conn Connectivity) iter.Seq[RLE] {
	return func(yield func(RLE) bool) {
		l := Label(m, conn)
		if l.Count == 0 {
			return
		}
		areas := l.Areas()
		runs := make([]RLE, l.Count+1)
		last := make([]int, l.Count+1)
		for i := range last {
			last[i] = -2
		}

		// One column-major pass builds the runs of every object at once.
		for x := 0; x < m.Width; x++ {
			for y := 0; y < m.Height; y++ {
				id := l.Labels[y*m.Width+x]
				if id == 0 {
					continue
				}
				pos := x*m.Height + y
				if pos > last[id]+1 {
					runs[id] = append(runs[id], pos+1, 0)
				}
				runs[id][len(runs[id])-1]++
				last[id] = pos
			}
		}

		for id := 1; id <= l.Count; id++ {
			if float64(areas[id]) < minObjectSize {
				continue
			}
			if !yield(runs[id]) {
				return
			}
		}
	}
}

// DecodeRLE paints the runs of r onto a new height x width mask.
func DecodeRLE(r RLE, height, width int) (*Mask, error) {
	m := New(height, width)
	if err := paint(m, r); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeObjects paints several encodings onto one mask.
func DecodeObjects(rles []RLE, height, width int) (*Mask, error) {
	m := New(height, width)
	for i, r := range rles {
		if err := paint(m, r); err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
	}
	return m, nil
}

func paint(m *Mask, r RLE) error {
	if len(r)%2 != 0 {
		return fmt.Errorf("%w: odd number of values (%d)", ErrInvalidRLE, len(r))
	}
	total := m.Height * m.Width
	for i := 0; i < len(r); i += 2 {
		start, length := r[i]-1, r[i+1]
		if start < 0 || length < 0 || start+length > total {
			return fmt.Errorf("%w: run %d+%d outside %d pixels", ErrInvalidRLE, r[i], length, total)
		}
		for pos := start; pos < start+length; pos++ {
			x, y := pos/m.Height, pos%m.Height
			m.Pix[y*m.Width+x] = true
		}
	}
	return nil
}
