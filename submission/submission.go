// Package submission reads and writes run-length encoded prediction files.
//
// A submission is a CSV file with the header "ImageId,EncodedPixels" and one
// row per predicted object. Images without surviving objects have no rows.
package submission

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jamesainslie/go-nucleus/mask"
)

// Header is the first line of every submission file.
var Header = []string{"ImageId", "EncodedPixels"}

// ErrHeader is returned by Read when the file does not start with Header.
var ErrHeader = errors.New("submission: unexpected header")

// Row is one predicted object of one image.
type Row struct {
	ImageID string
	RLE     mask.RLE
}

// Rows encodes the objects of m, dropping those smaller than the size-scaled
// minimum for an image of m's dimensions.
func Rows(id string, m *mask.Mask, conn mask.Connectivity) []Row {
	var rows []Row
	for rle := range mask.EncodeObjects(m, mask.MinObjectSize(m.Height, m.Width), conn) {
		rows = append(rows, Row{ImageID: id, RLE: rle})
	}
	return rows
}

// FileName returns the submission file name for a model prefix and training step.
func FileName(prefix, step string) string {
	name := "submission"
	if prefix != "" {
		name += "-" + prefix
	}
	if step != "" {
		name += "-" + step
	}
	return name + ".csv"
}

// Write writes the header and rows as CSV.
func Write(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.ImageID, r.RLE.String()}); err != nil {
			return fmt.Errorf("write row %s: %w", r.ImageID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes rows to path, creating its directory if needed.
func WriteFile(path string, rows []Row) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create result dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Write(f, rows)
}

// Read parses a submission. Rows with an empty encoding are skipped.
func Read(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrHeader)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(head) < 2 || head[0] != Header[0] || head[1] != Header[1] {
		return nil, fmt.Errorf("%w: %v", ErrHeader, head)
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("row %v: want ImageId and EncodedPixels", rec)
		}
		rle, err := mask.ParseRLE(rec[1])
		if err != nil {
			return nil, fmt.Errorf("image %s: %w", rec[0], err)
		}
		if len(rle) == 0 {
			continue
		}
		rows = append(rows, Row{ImageID: rec[0], RLE: rle})
	}
	return rows, nil
}

// ReadFile parses the submission at path.
func ReadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open submission: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

// Group collects the encodings of each image, keeping file order.
func Group(rows []Row) map[string][]mask.RLE {
	out := make(map[string][]mask.RLE)
	for _, r := range rows {
		out[r.ImageID] = append(out[r.ImageID], r.RLE)
	}
	return out
}
