// Package report prints scoring results as plain-text tables.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	nucleus "github.com/jamesainslie/go-nucleus"
)

// Sweep prints tp/fp/fn and precision at every threshold.
func Sweep(w io.Writer, sweep []nucleus.ThresholdResult) {
	fmt.Fprintln(w, "IoU Threshold Sweep")
	fmt.Fprintln(w, strings.Repeat("-", 46))
	fmt.Fprintf(w, "%-8s %-8s %-8s %-8s %-8s\n", "Thresh", "TP", "FP", "FN", "Prec")
	for _, r := range sweep {
		fmt.Fprintf(w, "%-8.2f %-8d %-8d %-8d %-8.4f\n",
			r.Threshold, r.TruePositives, r.FalsePositives, r.FalseNegatives, r.Precision)
	}
	fmt.Fprintln(w, strings.Repeat("-", 46))
	fmt.Fprintf(w, "Mean precision: %.4f\n", nucleus.MeanPrecision(sweep))
}

// Images prints one line per image, sorted by id.
func Images(w io.Writer, images []nucleus.ImageResult) {
	width := len("Image")
	for _, img := range images {
		width = max(width, len(img.ID))
	}

	fmt.Fprintf(w, "%-*s %-8s %-6s %-6s %-8s\n", width, "Image", "Score", "True", "Pred", "Matched")
	fmt.Fprintln(w, strings.Repeat("-", width+33))
	for _, img := range images {
		fmt.Fprintf(w, "%-*s %-8.4f %-6d %-6d %-8d\n",
			width, img.ID, img.Score, img.TrueObjects, img.PredObjects, len(img.Matches))
	}
}

// Worst returns up to n images with the lowest score, lowest first. Ties keep id order.
func Worst(images []nucleus.ImageResult, n int) []nucleus.ImageResult {
	sorted := append([]nucleus.ImageResult(nil), images...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score < sorted[j].Score
	})
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// Summary prints the dataset score and object totals.
func Summary(w io.Writer, res *nucleus.DatasetResult) {
	var trueObjects, predObjects, matched int
	for _, img := range res.Images {
		trueObjects += img.TrueObjects
		predObjects += img.PredObjects
		matched += len(img.Matches)
	}
	fmt.Fprintf(w, "Images: %d  Score: %.4f\n", len(res.Images), res.Score)
	fmt.Fprintf(w, "(True objects: %d, Predicted objects: %d, Matched: %d)\n", trueObjects, predObjects, matched)
}

// Check is the outcome of decoding an image's encoding back onto its mask.
type Check struct {
	ID      string
	Matches int
	Misses  int
}

// Checks prints round-trip results and returns how many images had misses.
func Checks(w io.Writer, checks []Check) int {
	failed := 0
	for i, c := range checks {
		fmt.Fprintf(w, "no:%d, %s -> Run length encoding: %d matches, %d misses\n", i, c.ID, c.Matches, c.Misses)
		if c.Misses > 0 {
			failed++
		}
	}
	return failed
}
