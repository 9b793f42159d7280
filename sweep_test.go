package nucleus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultThresholds(t *testing.T) {
	got := DefaultThresholds()
	require.Len(t, got, 10)
	want := []float64{0.5, 0.55, 0.6, 0.65, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95}
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "threshold[%d]", i)
	}
}

func TestSweepThresholds(t *testing.T) {
	assert.Len(t, SweepThresholds(0.1, 0.3, 0.1), 3)
	assert.Nil(t, SweepThresholds(0.5, 0.4, 0.05))
	assert.Nil(t, SweepThresholds(0.5, 0.9, 0))
}

func TestSweep(t *testing.T) {
	matches := []Match{
		{TrueID: 1, PredID: 1, IoU: 0.9},
		{TrueID: 2, PredID: 3, IoU: 0.6},
	}
	// 3 true objects, 4 predicted objects.
	got := Sweep(matches, 3, 4, []float64{0.5, 0.7, 0.95})
	require.Len(t, got, 3)

	assert.Equal(t, ThresholdResult{Threshold: 0.5, TruePositives: 2, FalsePositives: 1, FalseNegatives: 2, Precision: 2.0 / 5}, got[0])
	assert.Equal(t, ThresholdResult{Threshold: 0.7, TruePositives: 1, FalsePositives: 2, FalseNegatives: 3, Precision: 1.0 / 6}, got[1])
	assert.Equal(t, ThresholdResult{Threshold: 0.95, TruePositives: 0, FalsePositives: 3, FalseNegatives: 4, Precision: 0}, got[2])
}

func TestSweep_StrictThreshold(t *testing.T) {
	got := Sweep([]Match{{TrueID: 1, PredID: 1, IoU: 0.5}}, 1, 1, []float64{0.5})
	assert.Equal(t, 0, got[0].TruePositives)
	assert.Equal(t, 1, got[0].FalsePositives)
	assert.Equal(t, 1, got[0].FalseNegatives)
}

func TestSweep_NoObjects(t *testing.T) {
	got := Sweep(nil, 0, 0, DefaultThresholds())
	for _, r := range got {
		assert.Equal(t, 1.0, r.Precision)
	}
	assert.Equal(t, 1.0, MeanPrecision(got))
}

func TestMeanPrecision_Empty(t *testing.T) {
	assert.Equal(t, 0.0, MeanPrecision(nil))
}

func TestResolveIoU(t *testing.T) {
	truth := labeled(1, 4, 1, 1, 1, 0)
	pred := labeled(1, 4, 0, 1, 1, 1)
	im, err := NewIntersectionMatrix(truth, pred)
	require.NoError(t, err)

	matches := []Match{{TrueID: 1, PredID: 1, Intersection: 2}}
	require.NoError(t, resolveIoU(im, matches))
	assert.Equal(t, 4, matches[0].Union)
	assert.Equal(t, 0.5, matches[0].IoU)
}

func TestResolveIoU_Invariant(t *testing.T) {
	im, err := NewIntersectionMatrix(labeled(1, 2, 1, 0), labeled(1, 2, 1, 0))
	require.NoError(t, err)

	tests := []struct {
		name  string
		match Match
	}{
		{name: "unknown true id", match: Match{TrueID: 2, PredID: 1, Intersection: 1}},
		{name: "unknown pred id", match: Match{TrueID: 1, PredID: 0, Intersection: 1}},
		{name: "intersection above union", match: Match{TrueID: 1, PredID: 1, Intersection: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := resolveIoU(im, []Match{tt.match})
			assert.ErrorIs(t, err, ErrInvariant)
		})
	}
}
