// Package archive stores predicted masks so they can be scored without
// rerunning inference.
//
// An archive is a sequence of length-prefixed protobuf records:
//
//	message Prediction {
//	  string id = 1;
//	  uint64 height = 2;
//	  uint64 width = 3;
//	  repeated uint64 runs = 4 [packed = true]; // column-major, 1-based
//	}
package archive

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/jamesainslie/go-nucleus/mask"
)

// ErrCorrupt is returned when an archive cannot be decoded.
var ErrCorrupt = errors.New("archive: corrupt record")

const (
	fieldID     protowire.Number = 1
	fieldHeight protowire.Number = 2
	fieldWidth  protowire.Number = 3
	fieldRuns   protowire.Number = 4
)

// Records larger than this are rejected before any mask memory is allocated.
const (
	maxSide   = 1 << 15
	maxPixels = 1 << 26
)

// Record is one archived prediction.
type Record struct {
	ID   string
	Mask *mask.Mask
}

// Writer appends records to an underlying writer.
type Writer struct {
	w   *bufio.Writer
	buf []byte
	n   int
}

// NewWriter returns a Writer. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write appends one record.
func (w *Writer) Write(r Record) error {
	body := marshal(r)
	w.buf = protowire.AppendVarint(w.buf[:0], uint64(len(body)))
	w.buf = append(w.buf, body...)
	if _, err := w.w.Write(w.buf); err != nil {
		return fmt.Errorf("write record %s: %w", r.ID, err)
	}
	w.n++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int { return w.n }

// Flush writes any buffered data.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

func marshal(r Record) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldID, protowire.BytesType)
	b = protowire.AppendString(b, r.ID)
	b = protowire.AppendTag(b, fieldHeight, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Mask.Height))
	b = protowire.AppendTag(b, fieldWidth, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.Mask.Width))

	runs := mask.EncodeRLE(r.Mask)
	if len(runs) > 0 {
		var packed []byte
		for _, v := range runs {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		b = protowire.AppendTag(b, fieldRuns, protowire.BytesType)
		b = protowire.AppendBytes(b, packed)
	}
	return b
}

func unmarshal(b []byte) (Record, error) {
	var (
		r             Record
		height, width uint64
		runs          mask.RLE
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Record{}, fmt.Errorf("%w: %w", ErrCorrupt, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: id: %w", ErrCorrupt, protowire.ParseError(n))
			}
			r.ID = v
			b = b[n:]
		case (num == fieldHeight || num == fieldWidth) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: size: %w", ErrCorrupt, protowire.ParseError(n))
			}
			if num == fieldHeight {
				height = v
			} else {
				width = v
			}
			b = b[n:]
		case num == fieldRuns && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: runs: %w", ErrCorrupt, protowire.ParseError(n))
			}
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return Record{}, fmt.Errorf("%w: runs: %w", ErrCorrupt, protowire.ParseError(m))
				}
				runs = append(runs, int(v))
				packed = packed[m:]
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Record{}, fmt.Errorf("%w: field %d: %w", ErrCorrupt, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if height > maxSide || width > maxSide || height*width > maxPixels {
		return Record{}, fmt.Errorf("%w: record %s: mask %dx%d too large", ErrCorrupt, r.ID, height, width)
	}
	m, err := mask.DecodeRLE(runs, int(height), int(width))
	if err != nil {
		return Record{}, fmt.Errorf("record %s: %w", r.ID, err)
	}
	r.Mask = m
	return r, nil
}

// Read decodes every record from r.
func Read(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}

	var records []Record
	for len(data) > 0 {
		body, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("%w: record %d: %w", ErrCorrupt, len(records), protowire.ParseError(n))
		}
		rec, err := unmarshal(body)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		data = data[n:]
	}
	return records, nil
}

// WriteFile writes records to path.
func WriteFile(path string, records []Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := NewWriter(f)
	for _, r := range records {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return w.Flush()
}

// ReadFile decodes the archive at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}
