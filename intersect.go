package nucleus

import (
	"fmt"

	"github.com/jamesainslie/go-nucleus/mask"
)

// IntersectionMatrix counts overlapping pixels between every pair of true and
// predicted objects. Row and column 0 hold background, so cell (i, j) for
// i, j >= 1 is the overlap of true object i with predicted object j.
type IntersectionMatrix struct {
	rows     int
	cols     int
	cells    []int
	trueArea []int
	predArea []int
}

// NewIntersectionMatrix builds the joint histogram of two label maps in one
// pass over their pixels.
func NewIntersectionMatrix(truth, pred *mask.Labeled) (*IntersectionMatrix, error) {
	if truth.Height != pred.Height || truth.Width != pred.Width {
		return nil, fmt.Errorf("%w: truth %dx%d, prediction %dx%d",
			ErrShapeMismatch, truth.Height, truth.Width, pred.Height, pred.Width)
	}
	if len(truth.Labels) != len(pred.Labels) || len(truth.Labels) != truth.Height*truth.Width {
		return nil, fmt.Errorf("%w: label map size does not match %dx%d",
			ErrInvariant, truth.Height, truth.Width)
	}

	im := &IntersectionMatrix{
		rows:     truth.Count + 1,
		cols:     pred.Count + 1,
		trueArea: make([]int, truth.Count+1),
		predArea: make([]int, pred.Count+1),
	}
	im.cells = make([]int, im.rows*im.cols)

	for k, t := range truth.Labels {
		p := pred.Labels[k]
		if t < 0 || t >= im.rows || p < 0 || p >= im.cols {
			return nil, fmt.Errorf("%w: pixel %d has labels (%d, %d) outside (%d, %d) objects",
				ErrInvariant, k, t, p, truth.Count, pred.Count)
		}
		im.cells[t*im.cols+p]++
		im.trueArea[t]++
		im.predArea[p]++
	}

	return im, nil
}

// TrueObjects returns the number of ground-truth objects.
func (im *IntersectionMatrix) TrueObjects() int { return im.rows - 1 }

// PredObjects returns the number of predicted objects.
func (im *IntersectionMatrix) PredObjects() int { return im.cols - 1 }

// At returns the overlap of true object i and predicted object j. Index 0 on
// either side is background.
func (im *IntersectionMatrix) At(i, j int) int {
	if i < 0 || i >= im.rows || j < 0 || j >= im.cols {
		return 0
	}
	return im.cells[i*im.cols+j]
}

// TrueArea returns the pixel count of true object i, or 0 if i is out of range.
func (im *IntersectionMatrix) TrueArea(i int) int {
	if i < 0 || i >= im.rows {
		return 0
	}
	return im.trueArea[i]
}

// PredArea returns the pixel count of predicted object j, or 0 if j is out of range.
func (im *IntersectionMatrix) PredArea(j int) int {
	if j < 0 || j >= im.cols {
		return 0
	}
	return im.predArea[j]
}

// Overlap returns the number of pixels that are foreground in both masks.
func (im *IntersectionMatrix) Overlap() int {
	n := 0
	for i := 1; i < im.rows; i++ {
		for j := 1; j < im.cols; j++ {
			n += im.cells[i*im.cols+j]
		}
	}
	return n
}

type cell struct {
	trueID  int
	predID  int
	overlap int
}

// positive returns every object pair with non-zero overlap.
func (im *IntersectionMatrix) positive() []cell {
	var out []cell
	for i := 1; i < im.rows; i++ {
		row := im.cells[i*im.cols : (i+1)*im.cols]
		for j := 1; j < im.cols; j++ {
			if row[j] > 0 {
				out = append(out, cell{trueID: i, predID: j, overlap: row[j]})
			}
		}
	}
	return out
}
