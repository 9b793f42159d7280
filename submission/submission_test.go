package submission

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/go-nucleus/mask"
)

// blocks returns a 256x256 mask with a 5x5 block (kept) and a 3x3 block
// (below the 20 pixel minimum).
func blocks() *mask.Mask {
	m := mask.New(256, 256)
	for y := 10; y < 15; y++ {
		for x := 10; x < 15; x++ {
			m.Set(x, y, true)
		}
	}
	for y := 100; y < 103; y++ {
		for x := 200; x < 203; x++ {
			m.Set(x, y, true)
		}
	}
	return m
}

func TestRows(t *testing.T) {
	rows := Rows("img", blocks(), mask.Connectivity8)
	require.Len(t, rows, 1)
	assert.Equal(t, "img", rows[0].ImageID)
	assert.Equal(t, 25, rows[0].RLE.Pixels())
	// Column 10 starts at 10*256+10, 1-based.
	assert.Equal(t, 10*256+10+1, rows[0].RLE[0])
	assert.Equal(t, 5, rows[0].RLE[1])
}

func TestRows_Empty(t *testing.T) {
	assert.Empty(t, Rows("img", mask.New(8, 8), mask.Connectivity8))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "submission-nucleus_419-50.csv", FileName("nucleus_419", "50"))
	assert.Equal(t, "submission-unet.csv", FileName("unet", ""))
	assert.Equal(t, "submission.csv", FileName("", ""))
}

func TestWriteRead(t *testing.T) {
	rows := []Row{
		{ImageID: "a", RLE: mask.RLE{1, 3, 10, 2}},
		{ImageID: "b", RLE: mask.RLE{5, 1}},
		{ImageID: "a", RLE: mask.RLE{20, 4}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, rows))
	assert.True(t, strings.HasPrefix(buf.String(), "ImageId,EncodedPixels\na,1 3 10 2\n"))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	grouped := Group(got)
	assert.Equal(t, []mask.RLE{{1, 3, 10, 2}, {20, 4}}, grouped["a"])
	assert.Len(t, grouped["b"], 1)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result", FileName("unet", "7"))
	rows := Rows("img", blocks(), mask.Connectivity8)
	require.NoError(t, WriteFile(path, rows))

	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "bad header", input: "id,rle\na,1 2\n"},
		{name: "odd runs", input: "ImageId,EncodedPixels\na,1 2 3\n"},
		{name: "not a number", input: "ImageId,EncodedPixels\na,1 x\n"},
		{name: "short row", input: "ImageId,EncodedPixels\na\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestRead_SkipsEmptyEncoding(t *testing.T) {
	got, err := Read(strings.NewReader("ImageId,EncodedPixels\na,\nb,3 1\n"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ImageID)
}
