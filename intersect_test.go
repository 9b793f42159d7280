package nucleus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/go-nucleus/mask"
)

func TestNewIntersectionMatrix(t *testing.T) {
	truth := labeled(2, 3,
		1, 1, 0,
		0, 2, 2)
	pred := labeled(2, 3,
		1, 0, 0,
		1, 1, 2)

	im, err := NewIntersectionMatrix(truth, pred)
	require.NoError(t, err)

	assert.Equal(t, 2, im.TrueObjects())
	assert.Equal(t, 2, im.PredObjects())

	assert.Equal(t, 1, im.At(1, 1))
	assert.Equal(t, 0, im.At(1, 2))
	assert.Equal(t, 1, im.At(2, 1))
	assert.Equal(t, 1, im.At(2, 2))
	assert.Equal(t, 1, im.At(1, 0))
	assert.Equal(t, 0, im.At(9, 9))

	assert.Equal(t, 2, im.TrueArea(1))
	assert.Equal(t, 2, im.TrueArea(2))
	assert.Equal(t, 3, im.PredArea(1))
	assert.Equal(t, 1, im.PredArea(2))
	assert.Equal(t, 0, im.PredArea(7))
}

func TestIntersectionMatrix_OverlapInvariant(t *testing.T) {
	truthMask := rows(t, [][]uint8{
		{1, 1, 0, 1},
		{0, 1, 0, 1},
		{1, 0, 0, 0},
	})
	predMask := rows(t, [][]uint8{
		{1, 0, 0, 1},
		{1, 1, 0, 0},
		{1, 0, 1, 1},
	})

	both := 0
	for i := range truthMask.Pix {
		if truthMask.Pix[i] && predMask.Pix[i] {
			both++
		}
	}

	im, err := NewIntersectionMatrix(
		mask.Label(truthMask, mask.Connectivity8),
		mask.Label(predMask, mask.Connectivity8))
	require.NoError(t, err)
	assert.Equal(t, both, im.Overlap())
}

func TestNewIntersectionMatrix_Errors(t *testing.T) {
	t.Run("shape mismatch", func(t *testing.T) {
		_, err := NewIntersectionMatrix(labeled(1, 2, 0, 1), labeled(2, 1, 0, 1))
		assert.ErrorIs(t, err, ErrShapeMismatch)
	})

	t.Run("label above count", func(t *testing.T) {
		bad := &mask.Labeled{Height: 1, Width: 2, Count: 1, Labels: []int{1, 2}}
		_, err := NewIntersectionMatrix(bad, labeled(1, 2, 0, 0))
		assert.ErrorIs(t, err, ErrInvariant)
	})

	t.Run("short label slice", func(t *testing.T) {
		bad := &mask.Labeled{Height: 1, Width: 2, Count: 1, Labels: []int{1}}
		_, err := NewIntersectionMatrix(bad, labeled(1, 2, 0, 0))
		assert.ErrorIs(t, err, ErrInvariant)
	})
}

func TestNewIntersectionMatrix_NoObjects(t *testing.T) {
	im, err := NewIntersectionMatrix(labeled(1, 3, 1, 1, 0), labeled(1, 3, 0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, im.TrueObjects())
	assert.Equal(t, 0, im.PredObjects())
	assert.Equal(t, 0, im.Overlap())
}
