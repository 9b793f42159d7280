package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	nucleus "github.com/jamesainslie/go-nucleus"
)

func images() []nucleus.ImageResult {
	return []nucleus.ImageResult{
		{ID: "a", Result: &nucleus.Result{Score: 0.9, TrueObjects: 3, PredObjects: 3, Matches: make([]nucleus.Match, 3)}},
		{ID: "b", Result: &nucleus.Result{Score: 0.2, TrueObjects: 4, PredObjects: 1, Matches: make([]nucleus.Match, 1)}},
		{ID: "c", Result: &nucleus.Result{Score: 0.2, TrueObjects: 1, PredObjects: 2}},
	}
}

func TestSweep(t *testing.T) {
	var buf bytes.Buffer
	Sweep(&buf, []nucleus.ThresholdResult{
		{Threshold: 0.5, TruePositives: 2, FalsePositives: 1, FalseNegatives: 1, Precision: 0.5},
		{Threshold: 0.95, FalsePositives: 3, FalseNegatives: 3},
	})
	out := buf.String()
	assert.Contains(t, out, "0.50     2        1        1        0.5000")
	assert.Contains(t, out, "Mean precision: 0.2500")
}

func TestImages(t *testing.T) {
	var buf bytes.Buffer
	Images(&buf, images())
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "Image"))
	assert.True(t, strings.HasPrefix(lines[2], "a     0.9000"))
}

func TestWorst(t *testing.T) {
	worst := Worst(images(), 2)
	assert.Len(t, worst, 2)
	assert.Equal(t, "b", worst[0].ID)
	assert.Equal(t, "c", worst[1].ID)
	assert.Len(t, Worst(images(), 10), 3)
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	Summary(&buf, &nucleus.DatasetResult{Score: 0.4333, Images: images()})
	assert.Contains(t, buf.String(), "Images: 3  Score: 0.4333")
	assert.Contains(t, buf.String(), "True objects: 8, Predicted objects: 6, Matched: 4")
}

func TestChecks(t *testing.T) {
	var buf bytes.Buffer
	failed := Checks(&buf, []Check{{ID: "x", Matches: 16}, {ID: "y", Matches: 14, Misses: 2}})
	assert.Equal(t, 1, failed)
	assert.Contains(t, buf.String(), "no:1, y -> Run length encoding: 14 matches, 2 misses")
}
