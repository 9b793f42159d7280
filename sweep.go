package nucleus

import (
	"fmt"
)

// ThresholdResult holds the object counts at one IoU threshold.
type ThresholdResult struct {
	Threshold      float64
	TruePositives  int
	FalsePositives int
	FalseNegatives int
	Precision      float64
}

// DefaultThresholds returns the IoU thresholds 0.50, 0.55, ..., 0.95.
func DefaultThresholds() []float64 {
	return SweepThresholds(0.5, 0.95, 0.05)
}

// SweepThresholds generates thresholds from min to max inclusive with the
// given step. Each value is computed as min+i*step so rounding does not
// accumulate.
func SweepThresholds(min, max, step float64) []float64 {
	if step <= 0 || max < min {
		return nil
	}
	n := int((max-min)/step+1e-9) + 1
	thresholds := make([]float64, n)
	for i := range thresholds {
		thresholds[i] = min + float64(i)*step
	}
	return thresholds
}

// resolveIoU fills Union and IoU for every match from the object areas in im.
// A match naming an object that does not exist, or one with no pixels, means
// the labeler or matcher broke its contract.
func resolveIoU(im *IntersectionMatrix, matches []Match) error {
	m, n := im.TrueObjects(), im.PredObjects()
	for k := range matches {
		mt := &matches[k]
		if mt.TrueID < 1 || mt.TrueID > m || mt.PredID < 1 || mt.PredID > n {
			return fmt.Errorf("%w: match (%d, %d) outside %d true and %d predicted objects",
				ErrInvariant, mt.TrueID, mt.PredID, m, n)
		}
		ta, pa := im.TrueArea(mt.TrueID), im.PredArea(mt.PredID)
		if ta == 0 || pa == 0 {
			return fmt.Errorf("%w: match (%d, %d) has an empty object",
				ErrInvariant, mt.TrueID, mt.PredID)
		}
		mt.Union = ta + pa - mt.Intersection
		if mt.Union <= 0 || mt.Intersection > mt.Union {
			return fmt.Errorf("%w: match (%d, %d) has intersection %d and union %d",
				ErrInvariant, mt.TrueID, mt.PredID, mt.Intersection, mt.Union)
		}
		mt.IoU = float64(mt.Intersection) / float64(mt.Union)
	}
	return nil
}

// Sweep counts true positives, false positives and false negatives at each
// threshold and returns the per-threshold precision.
//
// A match counts as a true positive when its IoU is strictly above the
// threshold. Every other true object is a false positive and every other
// predicted object is a false negative, so a match below the threshold
// contributes one of each. Precision is tp/(tp+fp+fn), or 1 when there are no
// objects on either side.
func Sweep(matches []Match, trueObjects, predObjects int, thresholds []float64) []ThresholdResult {
	results := make([]ThresholdResult, len(thresholds))
	for i, t := range thresholds {
		tp := 0
		for _, mt := range matches {
			if mt.IoU > t {
				tp++
			}
		}
		r := ThresholdResult{
			Threshold:      t,
			TruePositives:  tp,
			FalsePositives: trueObjects - tp,
			FalseNegatives: predObjects - tp,
		}
		if denom := r.TruePositives + r.FalsePositives + r.FalseNegatives; denom > 0 {
			r.Precision = float64(r.TruePositives) / float64(denom)
		} else {
			r.Precision = 1
		}
		results[i] = r
	}
	return results
}

// MeanPrecision averages precision over a sweep.
func MeanPrecision(sweep []ThresholdResult) float64 {
	if len(sweep) == 0 {
		return 0
	}
	var sum float64
	for _, r := range sweep {
		sum += r.Precision
	}
	return sum / float64(len(sweep))
}
