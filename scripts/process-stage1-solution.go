//go:build ignore

// Process the stage-1 solution CSV into per-nucleus mask PNGs so the test set
// can be scored like the training set. Each row (ImageId, EncodedPixels,
// Height, Width) becomes <data-dir>/<id>/masks/<n>.png next to the image.
// Usage: go run ./scripts/process-stage1-solution.go [solution.csv] [data-dir]
package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/jamesainslie/go-nucleus/mask"
)

func main() {
	solution := "testdata/stage1_solution.csv"
	dataDir := "testdata/stage1_test"
	if len(os.Args) > 1 {
		solution = os.Args[1]
	}
	if len(os.Args) > 2 {
		dataDir = os.Args[2]
	}

	counts, err := process(solution, dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	fmt.Printf("\nDone! Wrote %d masks for %d images under %s/\n", total, len(counts), dataDir)
}

func process(path, dataDir string) (map[string]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	head, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(head))
	for i, name := range head {
		col[name] = i
	}
	for _, name := range []string{"ImageId", "EncodedPixels", "Height", "Width"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %s", name)
		}
	}

	counts := make(map[string]int)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		id := rec[col["ImageId"]]
		h, err := strconv.Atoi(rec[col["Height"]])
		if err != nil {
			return nil, fmt.Errorf("%s: height: %w", id, err)
		}
		w, err := strconv.Atoi(rec[col["Width"]])
		if err != nil {
			return nil, fmt.Errorf("%s: width: %w", id, err)
		}
		rle, err := mask.ParseRLE(rec[col["EncodedPixels"]])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		m, err := mask.DecodeRLE(rle, h, w)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}

		dir := filepath.Join(dataDir, id, "masks")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		name := filepath.Join(dir, fmt.Sprintf("%03d.png", counts[id]))
		if err := imaging.Save(m.Gray(), name); err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		if counts[id] == 0 {
			fmt.Printf("Processing %s (%dx%d)...\n", id, w, h)
		}
		counts[id]++
	}
	return counts, nil
}
